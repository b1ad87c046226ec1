package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/policy"
	"github.com/bijux/atlas-engine/internal/publish"
)

const fixtureFeatures = "1\tvendor\tgene\t100\t200\t.\t+\t.\tID=gene:ENSG001;gene_biotype=protein_coding;Name=DEMO1\n" +
	"1\tvendor\tmRNA\t100\t200\t.\t+\t.\tID=transcript:ENST001;Parent=gene:ENSG001\n" +
	"1\tvendor\texon\t100\t150\t.\t+\t.\tParent=transcript:ENST001\n" +
	"1\tvendor\texon\t160\t200\t.\t+\t.\tParent=transcript:ENST001\n" +
	"1\tvendor\tCDS\t105\t195\t.\t+\t0\tParent=transcript:ENST001\n"

const fixtureFai = "1\t1000\t5\t60\t61\n"

const fixtureSequence = ">1\n" + "ACGT\n"

func writeFixtureFiles(t *testing.T, dir string) (featuresPath, faiPath string) {
	t.Helper()
	featuresPath = filepath.Join(dir, "features.gff3")
	if err := os.WriteFile(featuresPath, []byte(fixtureFeatures), 0o644); err != nil {
		t.Fatalf("write features fixture: %v", err)
	}
	faiPath = filepath.Join(dir, "genome.fa.fai")
	if err := os.WriteFile(faiPath, []byte(fixtureFai), 0o644); err != nil {
		t.Fatalf("write fai fixture: %v", err)
	}
	return featuresPath, faiPath
}

func writeFixtureSequence(t *testing.T, dir string) string {
	t.Helper()
	sequencePath := filepath.Join(dir, "genome.fa")
	if err := os.WriteFile(sequencePath, []byte(fixtureSequence), 0o644); err != nil {
		t.Fatalf("write sequence fixture: %v", err)
	}
	return sequencePath
}

func TestRunPublishesMonolithicDataset(t *testing.T) {
	dir := t.TempDir()
	featuresPath, faiPath := writeFixtureFiles(t, dir)
	sequencePath := writeFixtureSequence(t, dir)
	cacheRoot := filepath.Join(dir, "cache")

	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}

	report, err := Run(IngestRequest{
		DatasetId:    datasetID,
		FeaturesPath: featuresPath,
		FaiPath:      faiPath,
		SequencePath: sequencePath,
		CacheRoot:    cacheRoot,
		Options:      policy.DefaultIngestOptions(),
		Sharding:     artifact.ShardingNone,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.GeneCount != 1 {
		t.Errorf("expected 1 gene, got %d", report.GeneCount)
	}
	if report.TranscriptCount != 1 {
		t.Errorf("expected 1 transcript, got %d", report.TranscriptCount)
	}
	if len(report.Shards) != 1 || report.Shards[0] != "gene_summary.sqlite" {
		t.Errorf("expected a single gene_summary.sqlite shard, got %v", report.Shards)
	}

	paths := publish.ArtifactPaths{Root: cacheRoot, DatasetId: datasetID}
	for _, p := range []string{
		paths.GeneSummaryPath(), paths.ReleaseGeneIndexPath(), paths.ManifestPath(), paths.ManifestLockPath(),
		paths.SequencePath(false), paths.FaiPath(false),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestRunPublishesWithoutSequenceFile(t *testing.T) {
	dir := t.TempDir()
	featuresPath, faiPath := writeFixtureFiles(t, dir)
	cacheRoot := filepath.Join(dir, "cache")

	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}

	_, err = Run(IngestRequest{
		DatasetId:    datasetID,
		FeaturesPath: featuresPath,
		FaiPath:      faiPath,
		CacheRoot:    cacheRoot,
		Options:      policy.DefaultIngestOptions(),
		Sharding:     artifact.ShardingNone,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	paths := publish.ArtifactPaths{Root: cacheRoot, DatasetId: datasetID}
	if _, err := os.Stat(paths.FaiPath(false)); err != nil {
		t.Errorf("expected length index to be published even without a sequence file: %v", err)
	}
	if _, err := os.Stat(paths.SequencePath(false)); err == nil {
		t.Errorf("expected no sequence file to be published when SequencePath is empty")
	}
}

func TestRunPublishesShardedDataset(t *testing.T) {
	dir := t.TempDir()
	featuresPath, faiPath := writeFixtureFiles(t, dir)
	cacheRoot := filepath.Join(dir, "cache")

	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}

	report, err := Run(IngestRequest{
		DatasetId:    datasetID,
		FeaturesPath: featuresPath,
		FaiPath:      faiPath,
		CacheRoot:    cacheRoot,
		Options:      policy.DefaultIngestOptions(),
		Sharding:     artifact.ShardingContig,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Shards) != 1 || report.Shards[0] != "gene_summary.1.sqlite" {
		t.Errorf("expected one per-seqid shard gene_summary.1.sqlite, got %v", report.Shards)
	}
}

func TestRunRejectsInvalidParallelism(t *testing.T) {
	dir := t.TempDir()
	featuresPath, faiPath := writeFixtureFiles(t, dir)
	datasetID, _ := ids.New("110", "homo_sapiens", "GRCh38")
	opts := policy.DefaultIngestOptions()
	opts.MaxThreads = 0

	_, err := Run(IngestRequest{
		DatasetId:    datasetID,
		FeaturesPath: featuresPath,
		FaiPath:      faiPath,
		CacheRoot:    filepath.Join(dir, "cache"),
		Options:      opts,
		Sharding:     artifact.ShardingNone,
	})
	if err == nil {
		t.Fatal("expected an error for max_threads=0")
	}
}
