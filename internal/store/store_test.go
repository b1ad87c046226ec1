package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/publish"
)

func publishFixture(t *testing.T, root string) (ids.DatasetId, publish.ArtifactPaths) {
	t.Helper()
	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	paths := publish.ArtifactPaths{Root: root, DatasetId: datasetID}
	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		t.Fatalf("mkdir derived: %v", err)
	}
	if err := os.MkdirAll(paths.InputsDir(), 0o755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}

	writeTmp := func(path, content string) string {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", tmp, err)
		}
		return tmp
	}

	tableTmp := writeTmp(paths.GeneSummaryPath(), "fake-sqlite-bytes")
	indexTmp := writeTmp(paths.ReleaseGeneIndexPath(), `{"entries":[{"gene_id":"BRCA1","shard":"gene_summary.sqlite"}]}`)
	if err := os.WriteFile(paths.SequencePath(false), []byte(">1\nACGT\n"), 0o644); err != nil {
		t.Fatalf("write fasta: %v", err)
	}
	if err := os.WriteFile(paths.FaiPath(false), []byte("1\t4\t3\t4\t5\n"), 0o644); err != nil {
		t.Fatalf("write fai: %v", err)
	}

	payload := []publish.StagedFile{
		{TmpPath: tableTmp, FinalPath: paths.GeneSummaryPath()},
		{TmpPath: indexTmp, FinalPath: paths.ReleaseGeneIndexPath()},
	}
	manifest := &artifact.ArtifactManifest{
		SchemaVersion: artifact.SchemaVersion,
		DatasetId:     datasetID,
		GeneCount:     1,
	}
	pub := publish.NewPublisher(root)
	if err := pub.Publish(paths, payload, manifest); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return datasetID, paths
}

func TestLocalFsBackendFetchRoundTrip(t *testing.T) {
	root := t.TempDir()
	datasetID, paths := publishFixture(t, root)
	backend := NewLocalFsBackend(root)
	ctx := context.Background()

	fetch, err := backend.FetchCatalog(ctx, "")
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if fetch.NotModified {
		t.Fatal("expected fresh catalog fetch, got NotModified")
	}
	if fetch.Catalog == nil || !fetch.Catalog.Contains(datasetID) {
		t.Fatal("expected fetched catalog to contain the published dataset")
	}

	second, err := backend.FetchCatalog(ctx, fetch.ETag)
	if err != nil {
		t.Fatalf("FetchCatalog with matching etag: %v", err)
	}
	if !second.NotModified {
		t.Error("expected NotModified when If-None-Match equals current etag")
	}

	manifest, err := backend.FetchManifest(ctx, datasetID)
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if manifest.GeneCount != 1 {
		t.Errorf("GeneCount = %d, want 1", manifest.GeneCount)
	}

	tableBytes, err := backend.FetchSqliteBytes(ctx, datasetID, "gene_summary.sqlite")
	if err != nil {
		t.Fatalf("FetchSqliteBytes: %v", err)
	}
	if string(tableBytes) != "fake-sqlite-bytes" {
		t.Errorf("unexpected table bytes: %q", tableBytes)
	}

	fasta, err := backend.FetchFastaBytes(ctx, datasetID)
	if err != nil {
		t.Fatalf("FetchFastaBytes: %v", err)
	}
	if string(fasta) != ">1\nACGT\n" {
		t.Errorf("unexpected fasta bytes: %q", fasta)
	}

	fai, err := backend.FetchFaiBytes(ctx, datasetID)
	if err != nil {
		t.Fatalf("FetchFaiBytes: %v", err)
	}
	if len(fai) == 0 {
		t.Error("expected non-empty fai bytes")
	}

	geneIndex, err := backend.FetchReleaseGeneIndexBytes(ctx, datasetID)
	if err != nil {
		t.Fatalf("FetchReleaseGeneIndexBytes: %v", err)
	}
	if len(geneIndex) == 0 {
		t.Error("expected non-empty release gene index bytes")
	}

	_ = paths
}

func TestLocalFsBackendFetchManifestMissingDataset(t *testing.T) {
	root := t.TempDir()
	backend := NewLocalFsBackend(root)
	missing, err := ids.New("999", "nobody", "none")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	if _, err := backend.FetchManifest(context.Background(), missing); err == nil {
		t.Fatal("expected error fetching manifest for unpublished dataset")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 4 || p.BaseBackoffMs != 120 {
		t.Errorf("DefaultRetryPolicy = %+v, want {4 120}", p)
	}
}

func TestLocalFsBackendResolveInputFilePrefersCompressed(t *testing.T) {
	root := t.TempDir()
	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	paths := publish.ArtifactPaths{Root: root, DatasetId: datasetID}
	if err := os.MkdirAll(paths.InputsDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(paths.SequencePath(true), []byte("compressed"), 0o644); err != nil {
		t.Fatalf("write compressed fasta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(paths.InputsDir(), "genome.fa.bgz.fai"), []byte("1\t4\t3\t4\t5\n"), 0o644); err != nil {
		t.Fatalf("write fai: %v", err)
	}

	backend := NewLocalFsBackend(root)
	raw, err := backend.FetchFastaBytes(context.Background(), datasetID)
	if err != nil {
		t.Fatalf("FetchFastaBytes: %v", err)
	}
	if string(raw) != "compressed" {
		t.Errorf("expected compressed fasta bytes, got %q", raw)
	}
}
