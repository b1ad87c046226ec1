// Package cache implements the Dataset Cache: an on-disk, pinned LRU of
// table-store artifacts keyed by DatasetId, with verify-on-open,
// single-flight build coalescing, and a per-dataset circuit breaker
// guarding repeated upstream failures.
package cache

import "github.com/bijux/atlas-engine/internal/store"

// Config bounds the cache's disk usage and failure handling.
type Config struct {
	MaxDiskBytes            int64
	MaxDatasetCount         int
	BreakerFailureThreshold int
	BreakerOpenMs           int64
	Retry                   store.RetryPolicy
	CachedOnly              bool
}

// DefaultConfig matches the teacher's calibration for the analogous
// download/retry knobs, scaled to this cache's breaker semantics.
func DefaultConfig() Config {
	return Config{
		MaxDiskBytes:            50 << 30,
		MaxDatasetCount:         64,
		BreakerFailureThreshold: 5,
		BreakerOpenMs:           30_000,
		Retry:                   store.DefaultRetryPolicy(),
		CachedOnly:              false,
	}
}
