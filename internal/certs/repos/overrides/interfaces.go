package overrides

import "github.com/haukened/rr-certoverride/internal/certs/domain"

// Store persists permanent overrides keyed by host:port.
type Store interface {
	Put(o domain.Override) error
	Get(key string) (domain.Override, bool, error)
	Delete(key string) error
	// Visit calls fn for every stored override in key order until fn
	// returns false.
	Visit(fn func(o domain.Override) bool) error
	Stats() StoreStats
	Close() error
}

// LookupCache caches store lookups by host:port key.
type LookupCache interface {
	Get(key string) (domain.Override, bool)
	Put(key string, o domain.Override)
	Remove(key string)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// FingerprintFilter is a probabilistic set of override fingerprints.
type FingerprintFilter interface {
	Add(fingerprint string)
	MightContain(fingerprint string) bool
}

// FilterFactory builds filters sized for a capacity and false-positive rate.
type FilterFactory interface {
	New(capacity uint64, fpRate float64) FingerprintFilter
}
