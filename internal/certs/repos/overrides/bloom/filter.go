package bloom

import (
	"strings"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides"
)

// filter wraps a bits-and-blooms filter. Fingerprints are folded to upper
// case so hex case never causes a false negative.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(fingerprint string) {
	f.mu.Lock()
	f.bf.AddString(strings.ToUpper(fingerprint))
	f.mu.Unlock()
}

func (f *filter) MightContain(fingerprint string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(strings.ToUpper(fingerprint))
}

type factory struct{}

// NewFactory returns a FilterFactory sizing filters from capacity and rate.
func NewFactory() overrides.FilterFactory { return factory{} }

func (factory) New(capacity uint64, fpRate float64) overrides.FingerprintFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
