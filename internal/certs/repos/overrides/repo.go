package overrides

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/haukened/rr-certoverride/internal/certs/common/clock"
	"github.com/haukened/rr-certoverride/internal/certs/common/log"
	"github.com/haukened/rr-certoverride/internal/certs/common/utils"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/services/override"
)

// repository is the default override service. Permanent overrides live in
// the Store behind a LookupCache; temporary ones live in memory. A
// fingerprint filter lets IsCertUsedForOverrides skip the store for
// certificates that were never overridden.
type repository struct {
	mu        sync.RWMutex
	store     Store
	cache     LookupCache
	factory   FilterFactory
	filter    FingerprintFilter
	fpRate    float64
	temporary map[string]domain.Override
	clock     clock.Clock
	logger    log.Logger
	skips     uint64
	// gen counts writes; a store read may only fill the cache if no write
	// happened since the read started. Guarded by mu.
	gen uint64
}

type Options struct {
	Store   Store
	Cache   LookupCache
	Filters FilterFactory
	FPRate  float64
	Clock   clock.Clock
	Logger  log.Logger
}

// Repository is the default override service plus its maintenance hooks.
type Repository interface {
	override.OverrideService
	RepoStats() RepoStats
	Close() error
}

// NewRepository builds the service and primes the fingerprint filter from
// the store.
func NewRepository(opts Options) (Repository, error) {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	r := &repository{
		store:     opts.Store,
		cache:     opts.Cache,
		factory:   opts.Filters,
		fpRate:    opts.FPRate,
		temporary: make(map[string]domain.Override),
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if err := r.rebuildFilter(); err != nil {
		return nil, err
	}
	return r, nil
}

// HasMatchingOverride reports a stored override for host:port whose
// fingerprint equals cert's. Temporary overrides take precedence.
func (r *repository) HasMatchingOverride(host string, port int, cert domain.Certificate) (domain.Decision, bool, error) {
	o, ok, err := r.GetValidityOverride(host, port)
	if err != nil || !ok || !o.Matches(cert) {
		return domain.Reject(), false, err
	}
	return domain.Accepted(o.Bits), o.Temporary, nil
}

func (r *repository) RememberValidityOverride(host string, port int, cert domain.Certificate, bits domain.OverrideBits, temporary bool) error {
	o, err := domain.NewOverride(host, port, cert, bits, temporary, r.clock.Now())
	if err != nil {
		return err
	}
	key := o.Key()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if temporary {
		r.temporary[key] = o
	} else {
		if err := r.store.Put(o); err != nil {
			return err
		}
		// a permanent override replaces any temporary one for the same endpoint
		delete(r.temporary, key)
		r.cache.Remove(key)
	}
	r.filter.Add(o.Fingerprint)

	r.logger.Info(map[string]any{
		"key":       key,
		"bits":      bits.String(),
		"temporary": temporary,
	}, "Override remembered")
	return nil
}

func (r *repository) ClearValidityOverride(host string, port int) error {
	key := utils.HostPort(host, port)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	delete(r.temporary, key)
	r.cache.Remove(key)
	if err := r.store.Delete(key); err != nil {
		return err
	}
	r.logger.Info(map[string]any{"key": key}, "Override cleared")
	return r.rebuildFilterLocked()
}

func (r *repository) GetValidityOverride(host string, port int) (domain.Override, bool, error) {
	key := utils.HostPort(host, port)

	r.mu.RLock()
	if o, ok := r.temporary[key]; ok {
		r.mu.RUnlock()
		return o, true, nil
	}
	if o, ok := r.cache.Get(key); ok {
		r.mu.RUnlock()
		return o, true, nil
	}
	gen := r.gen
	r.mu.RUnlock()

	o, ok, err := r.store.Get(key)
	if err != nil || !ok {
		return domain.Override{}, false, err
	}
	r.mu.Lock()
	if r.gen == gen {
		r.cache.Put(key, o)
	}
	r.mu.Unlock()
	return o, true, nil
}

// GetAllOverrideHostsWithPorts lists every host:port with an override,
// temporary and permanent, sorted and without duplicates.
func (r *repository) GetAllOverrideHostsWithPorts() ([]string, error) {
	seen := make(map[string]struct{})

	r.mu.RLock()
	for k := range r.temporary {
		seen[k] = struct{}{}
	}
	r.mu.RUnlock()

	if err := r.store.Visit(func(o domain.Override) bool {
		seen[o.Key()] = struct{}{}
		return true
	}); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *repository) IsCertUsedForOverrides(cert domain.Certificate, checkTemporaries, checkPermanents bool) (uint32, error) {
	if cert == nil {
		return 0, nil
	}
	fp := cert.Fingerprint()

	r.mu.RLock()
	maybe := r.filter.MightContain(fp)
	var n uint32
	if maybe && checkTemporaries {
		for _, o := range r.temporary {
			if o.Matches(cert) {
				n++
			}
		}
	}
	r.mu.RUnlock()

	if !maybe {
		atomic.AddUint64(&r.skips, 1)
		return 0, nil
	}
	if !checkPermanents {
		return n, nil
	}
	err := r.store.Visit(func(o domain.Override) bool {
		if o.Matches(cert) {
			n++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *repository) RepoStats() RepoStats {
	hits, misses, evictions := r.cache.Stats()
	r.mu.RLock()
	temporary := len(r.temporary)
	r.mu.RUnlock()
	return RepoStats{
		Temporary:   temporary,
		CacheHits:   hits,
		CacheMisses: misses,
		Evictions:   evictions,
		FilterSkips: atomic.LoadUint64(&r.skips),
		Store:       r.store.Stats(),
	}
}

func (r *repository) Close() error {
	return r.store.Close()
}

func (r *repository) rebuildFilter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuildFilterLocked()
}

// rebuildFilterLocked sizes a fresh filter for the current overrides and
// swaps it in. Callers hold r.mu.
func (r *repository) rebuildFilterLocked() error {
	var fps []string
	if err := r.store.Visit(func(o domain.Override) bool {
		fps = append(fps, o.Fingerprint)
		return true
	}); err != nil {
		return err
	}
	for _, o := range r.temporary {
		fps = append(fps, o.Fingerprint)
	}

	// leave headroom so a burst of new overrides keeps the target rate
	f := r.factory.New(uint64(len(fps))*2+64, r.fpRate)
	for _, fp := range fps {
		f.Add(fp)
	}
	r.filter = f
	return nil
}

var _ override.OverrideService = (*repository)(nil)
