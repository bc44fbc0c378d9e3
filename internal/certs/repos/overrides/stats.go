package overrides

// StoreStats reports store counts and metadata.
type StoreStats struct {
	Overrides   uint64 // number of permanent overrides
	Version     uint64 // bumped on every write
	UpdatedUnix int64  // last write, seconds since epoch
}

// RepoStats exposes repository counters and the underlying store stats.
type RepoStats struct {
	Temporary   int
	CacheHits   uint64
	CacheMisses uint64
	Evictions   uint64
	FilterSkips uint64 // IsCertUsedForOverrides answered by the filter alone
	Store       StoreStats
}
