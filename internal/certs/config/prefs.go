package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/v2"
)

// Prefs answers boolean preference lookups from a koanf instance. Values can
// be changed at runtime with Set.
type Prefs struct {
	mu sync.RWMutex
	k  *koanf.Koanf
}

// NewPrefs wraps k. A nil k yields an empty store where every lookup
// returns its default.
func NewPrefs(k *koanf.Koanf) *Prefs {
	if k == nil {
		k = koanf.New(".")
	}
	return &Prefs{k: k}
}

// GetBool returns the explicit value of name, or def when name is unset.
// A value that is present but not a boolean is an error.
func (p *Prefs) GetBool(name string, def bool) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.k.Exists(name) {
		return def, nil
	}
	switch v := p.k.Get(name).(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("preference %q: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("preference %q: unsupported value type %T", name, v)
	}
}

// Set assigns an explicit value to name.
func (p *Prefs) Set(name string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.k.Set(name, value)
}
