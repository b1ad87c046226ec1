package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/metrics"
	"github.com/bijux/atlas-engine/internal/publish"
	"github.com/bijux/atlas-engine/internal/store"
)

const monolithicFile = "gene_summary.sqlite"

// DatasetCache is the single owner of artifact files: the query layer
// never reads a table store path directly, only through a Handle obtained
// from Open or OpenTable.
type DatasetCache struct {
	root    string
	backend store.DatasetStoreBackend
	cfg     Config
	tape    *metrics.Tape

	mu       sync.Mutex
	entries  map[string]*entry
	breakers map[string]*breaker
	group    singleflight.Group
}

// NewDatasetCache constructs a cache that materializes artifacts under
// root, pulling from backend on a miss.
func NewDatasetCache(root string, backend store.DatasetStoreBackend, cfg Config, tape *metrics.Tape) *DatasetCache {
	return &DatasetCache{
		root:     root,
		backend:  backend,
		cfg:      cfg,
		tape:     tape,
		entries:  make(map[string]*entry),
		breakers: make(map[string]*breaker),
	}
}

func (c *DatasetCache) breakerFor(datasetID ids.DatasetId) *breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := datasetID.String()
	b, ok := c.breakers[key]
	if !ok {
		b = newBreaker(c.cfg.BreakerFailureThreshold, time.Duration(c.cfg.BreakerOpenMs)*time.Millisecond)
		c.breakers[key] = b
	}
	return b
}

// Open opens the monolithic table store for datasetID.
func (c *DatasetCache) Open(ctx context.Context, datasetID ids.DatasetId) (*Handle, error) {
	return c.OpenTable(ctx, datasetID, monolithicFile)
}

// OpenTable opens one named table store file within datasetID's artifact
// (the monolithic store, or one shard), or fails with a stable error kind:
// NotFound, Quarantined, Corrupted, or Unavailable. Every call records its
// latency against the Tape regardless of outcome, per spec.md §4.5.
func (c *DatasetCache) OpenTable(ctx context.Context, datasetID ids.DatasetId, fileName string) (*Handle, error) {
	start := time.Now()
	h, err := c.openTable(ctx, datasetID, fileName)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.tape.RecordOpenLatency(outcome, time.Since(start))
	return h, err
}

func (c *DatasetCache) openTable(ctx context.Context, datasetID ids.DatasetId, fileName string) (*Handle, error) {
	const op = errs.Op("cache.OpenTable")
	key := datasetID.String() + "|" + fileName
	now := time.Now()

	br := c.breakerFor(datasetID)
	if !br.Allow(now) {
		c.tape.SetBreakerOpen(datasetID.String(), true)
		return nil, errs.E(op, errs.KindUnavailable, "circuit breaker open for dataset")
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.quarantined {
			c.mu.Unlock()
			return nil, errs.E(op, errs.KindQuarantined, e.quarantineErr.Error())
		}
		e.pins++
		e.lastUsed = now
		c.mu.Unlock()

		if err := c.ensureVerified(ctx, e); err != nil {
			c.quarantine(e, err)
			c.release(e)
			return nil, err
		}
		if err := c.ensureOpen(e); err != nil {
			c.release(e)
			return nil, errs.Wrap(op, err)
		}
		return &Handle{cache: c, entry: e}, nil
	}
	c.mu.Unlock()

	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.build(ctx, datasetID, fileName)
	})
	if err != nil {
		br.RecordFailure(now)
		c.tape.RecordFetchFailure(classifyFailure(err))
		return nil, err
	}
	br.RecordSuccess()
	c.tape.SetBreakerOpen(datasetID.String(), false)

	built := raw.(*entry)
	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		existing.pins++
		existing.lastUsed = time.Now()
		c.mu.Unlock()
		return &Handle{cache: c, entry: existing}, nil
	}
	built.pins = 1
	built.lastUsed = time.Now()
	c.entries[key] = built
	c.mu.Unlock()

	c.evict()
	return &Handle{cache: c, entry: built}, nil
}

func (c *DatasetCache) release(e *entry) {
	c.mu.Lock()
	if e.pins > 0 {
		e.pins--
	}
	c.mu.Unlock()
}

func (c *DatasetCache) quarantine(e *entry, err error) {
	e.mu.Lock()
	e.quarantined = true
	e.quarantineErr = err
	e.mu.Unlock()
}

// ensureOpen lazily opens the sqlite connection for an entry materialized
// on a previous pass (e.g. present on disk but not yet reopened this
// process).
func (c *DatasetCache) ensureOpen(e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store != nil {
		return nil
	}
	st, err := artifact.Open(e.path)
	if err != nil {
		return err
	}
	e.store = st
	return nil
}

// ensureVerified performs verify-on-open: the first verification per
// process lifetime recomputes the digest; subsequent calls on an already
// verified entry hit the fast path.
func (c *DatasetCache) ensureVerified(ctx context.Context, e *entry) error {
	e.mu.Lock()
	if e.verified {
		e.mu.Unlock()
		c.tape.VerifyFastPathHit.Inc()
		return nil
	}
	e.mu.Unlock()

	manifest, err := c.backend.FetchManifest(ctx, e.datasetID)
	if err != nil {
		return errs.Wrap(errs.Op("cache.ensureVerified"), err)
	}
	if err := verifyDigest(manifest, e.path, e.fileName); err != nil {
		return err
	}

	e.mu.Lock()
	e.verified = true
	e.mu.Unlock()
	return nil
}

func verifyDigest(manifest *artifact.ArtifactManifest, path, fileName string) error {
	const op = errs.Op("cache.verifyDigest")
	var expected string
	for _, f := range manifest.Files {
		if strings.HasSuffix(f.Path, fileName) {
			expected = f.Sha256
			break
		}
	}
	if expected == "" {
		return errs.E(op, errs.KindCorrupted, fmt.Sprintf("manifest has no digest for %s", fileName))
	}
	actual, err := canonical.SHA256File(path)
	if err != nil {
		return errs.E(op, errs.KindCorrupted, fmt.Sprintf("hash %s", path), err)
	}
	if actual != expected {
		return errs.E(op, errs.KindCorrupted, fmt.Sprintf("digest mismatch for %s: manifest=%s actual=%s", fileName, expected, actual))
	}
	return nil
}

// build materializes fileName on disk, fetching it from the backend if
// necessary, and returns a ready (but not yet pinned) entry.
func (c *DatasetCache) build(ctx context.Context, datasetID ids.DatasetId, fileName string) (*entry, error) {
	const op = errs.Op("cache.build")
	paths := publish.ArtifactPaths{Root: c.root, DatasetId: datasetID}
	path := filepath.Join(paths.DerivedDir(), fileName)

	e := &entry{datasetID: datasetID, fileName: fileName, path: path}

	if _, err := os.Stat(path); err == nil {
		if err := c.ensureVerified(ctx, e); err != nil {
			return nil, err
		}
		st, err := artifact.Open(path)
		if err != nil {
			return nil, errs.E(op, errs.KindCorrupted, fmt.Sprintf("open %s", path), err)
		}
		e.store = st
		e.sizeBytes = statSize(path)
		return e, nil
	}

	if c.cfg.CachedOnly {
		return nil, errs.E(op, errs.KindUnavailable, "cached-only mode: dataset not present on disk")
	}

	manifest, err := c.backend.FetchManifest(ctx, datasetID)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	fetchStart := time.Now()
	raw, err := c.backend.FetchSqliteBytes(ctx, datasetID, fileName)
	fetchLatency := time.Since(fetchStart)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	c.tape.RecordDownloadLatency("sqlite", fetchLatency)
	c.tape.RecordDownloadTTFB("sqlite", fetchLatency)
	c.tape.RecordDownloadBytes("sqlite", len(raw))

	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("mkdir %s", paths.DerivedDir()), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("write %s", tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("rename %s", tmp), err)
	}

	if err := verifyDigest(manifest, path, fileName); err != nil {
		os.Remove(path)
		return nil, err
	}
	e.verified = true

	st, err := artifact.Open(path)
	if err != nil {
		return nil, errs.E(op, errs.KindCorrupted, fmt.Sprintf("open %s", path), err)
	}
	e.store = st
	e.sizeBytes = int64(len(raw))
	return e, nil
}

func statSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func classifyFailure(err error) metrics.FailureKind {
	switch errs.KindOf(err) {
	case errs.KindCorrupted:
		return metrics.FailureChecksum
	case errs.KindTimeout:
		return metrics.FailureTimeout
	case errs.KindUnavailable, errs.KindNotFound:
		return metrics.FailureNetwork
	default:
		return metrics.FailureOther
	}
}

// evict removes least-recently-used, unpinned entries until the cache is
// within MaxDiskBytes and MaxDatasetCount.
func (c *DatasetCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		total += e.sizeBytes
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].lastUsed.Before(c.entries[keys[j]].lastUsed)
	})

	overCount := func() bool { return c.cfg.MaxDatasetCount > 0 && len(c.entries) > c.cfg.MaxDatasetCount }
	overBytes := func() bool { return c.cfg.MaxDiskBytes > 0 && total > c.cfg.MaxDiskBytes }

	for _, k := range keys {
		if !overCount() && !overBytes() {
			return
		}
		e := c.entries[k]
		if e.pins > 0 {
			continue
		}
		if e.store != nil {
			e.store.Close()
		}
		os.Remove(e.path)
		total -= e.sizeBytes
		delete(c.entries, k)
	}
}
