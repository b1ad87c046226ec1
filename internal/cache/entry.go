package cache

import (
	"sync"
	"time"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/ids"
)

// entry is one cached artifact file: a materialized table store plus the
// bookkeeping the cache needs to decide eviction and skip repeat
// verification.
type entry struct {
	mu            sync.Mutex
	datasetID     ids.DatasetId
	fileName      string
	path          string
	store         *artifact.Store
	verified      bool
	quarantined   bool
	quarantineErr error
	pins          int
	lastUsed      time.Time
	sizeBytes     int64
}

// Handle is a caller's reference to an open table store. Release must be
// called exactly once the caller is done querying it; it drops the pin
// that keeps the dataset in the cache.
type Handle struct {
	cache *DatasetCache
	entry *entry
}

// Store returns the underlying read-only sqlite connection.
func (h *Handle) Store() *artifact.Store {
	return h.entry.store
}

// Release drops this handle's pin on the dataset, making it eligible for
// eviction once no other handle references it.
func (h *Handle) Release() {
	h.cache.release(h.entry)
}
