package patterncache

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/services/override"
)

// matcher caches compiled host patterns. Patterns that fail to compile are
// cached as nil and never match.
type matcher struct {
	lru *lru.Cache[string, *regexp.Regexp]
}

// New returns a HostMatcher holding up to size compiled patterns.
func New(size int) (override.HostMatcher, error) {
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, err
	}
	return &matcher{lru: cache}, nil
}

func (m *matcher) Match(pattern, host string) bool {
	if pattern == "" {
		return false
	}
	re, ok := m.lru.Get(pattern)
	if !ok {
		re, _ = domain.CompileHostPattern(pattern)
		m.lru.Add(pattern, re)
	}
	return re != nil && re.MatchString(host)
}

var _ override.HostMatcher = (*matcher)(nil)
