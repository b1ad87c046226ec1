package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/metrics"
	"github.com/bijux/atlas-engine/internal/publish"
	"github.com/bijux/atlas-engine/internal/store"
)

// writeFixtureArtifact builds a real (empty-schema) table store at
// paths.GeneSummaryPath() and a manifest.json whose digest matches it, the
// minimum a DatasetCache needs to open the dataset.
func writeFixtureArtifact(t *testing.T, paths publish.ArtifactPaths) {
	t.Helper()
	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		t.Fatalf("mkdir derived: %v", err)
	}
	st, err := artifact.Create(paths.GeneSummaryPath())
	if err != nil {
		t.Fatalf("artifact.Create: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	digest, err := canonical.SHA256File(paths.GeneSummaryPath())
	if err != nil {
		t.Fatalf("digest gene_summary.sqlite: %v", err)
	}
	manifest := artifact.ArtifactManifest{
		SchemaVersion: artifact.SchemaVersion,
		DatasetId:     paths.DatasetId,
		Files:         []artifact.FileDigest{{Path: "derived/gene_summary.sqlite", Sha256: digest}},
	}
	manifestBytes, err := manifest.MarshalCanonical()
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(paths.ManifestPath(), manifestBytes, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

// flipByte flips every bit of the file's first byte, changing its digest
// without necessarily breaking the sqlite file format itself — the cache's
// verify-on-open path must still catch it before the file is even opened.
func flipByte(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(raw) == 0 {
		t.Fatalf("%s is empty, nothing to flip", path)
	}
	raw[0] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestOpenDetectsTamperedArtifactAsCorrupted(t *testing.T) {
	root := t.TempDir()
	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	paths := publish.ArtifactPaths{Root: root, DatasetId: datasetID}
	writeFixtureArtifact(t, paths)

	backend := store.NewLocalFsBackend(root)
	ctx := context.Background()

	dc := NewDatasetCache(root, backend, DefaultConfig(), metrics.NewTape())
	handle, err := dc.Open(ctx, datasetID)
	if err != nil {
		t.Fatalf("Open on an untampered artifact: %v", err)
	}
	handle.Release()

	flipByte(t, paths.GeneSummaryPath())

	// A fresh cache instance models "first access" in a new process: it has
	// no verified-marker fast path to skip the digest recheck, so it must
	// recompute the digest and reject the now-tampered file.
	dc2 := NewDatasetCache(root, backend, DefaultConfig(), metrics.NewTape())
	if _, err := dc2.Open(ctx, datasetID); err == nil {
		t.Fatal("expected Open to fail on a tampered artifact")
	} else if errs.KindOf(err) != errs.KindCorrupted {
		t.Errorf("expected KindCorrupted, got %v (kind=%s)", err, errs.KindOf(err))
	}
}

func TestEvictNeverReclaimsAPinnedEntry(t *testing.T) {
	dc := NewDatasetCache(t.TempDir(), nil, Config{MaxDatasetCount: 1}, metrics.NewTape())
	now := time.Now()

	pinnedID, _ := ids.New("110", "homo_sapiens", "GRCh38")
	unpinnedID, _ := ids.New("111", "mus_musculus", "GRCm39")

	dc.entries["pinned"] = &entry{
		datasetID: pinnedID,
		fileName:  monolithicFile,
		path:      t.TempDir() + "/pinned.sqlite",
		pins:      1,
		lastUsed:  now.Add(-time.Hour),
	}
	dc.entries["unpinned"] = &entry{
		datasetID: unpinnedID,
		fileName:  monolithicFile,
		path:      t.TempDir() + "/unpinned.sqlite",
		pins:      0,
		lastUsed:  now,
	}

	dc.evict()

	if _, ok := dc.entries["pinned"]; !ok {
		t.Error("expected a pinned entry to survive eviction even though MaxDatasetCount is exceeded")
	}
	if _, ok := dc.entries["unpinned"]; ok {
		t.Error("expected the unpinned entry to be evicted once over MaxDatasetCount")
	}
}
