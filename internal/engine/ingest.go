// Package engine wires the ingest pipeline stages (Parser & Normalizer,
// Extractor & Resolver, Artifact Builder, Publisher) into one orchestrated
// run, the way a harness command invokes them end to end rather than
// exercising each package in isolation.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/extract"
	"github.com/bijux/atlas-engine/internal/faidx"
	"github.com/bijux/atlas-engine/internal/gff"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/policy"
	"github.com/bijux/atlas-engine/internal/publish"
)

// IngestRequest names the inputs one ingest run needs: a feature table, its
// sequence file and length index, the dataset identity it publishes as, and
// the policy bundle governing extraction. SequencePath is optional: when
// empty, no sequence file is published (useful for fixtures and tests that
// only exercise the feature-table path), and only the length index itself
// is copied into the artifact's inputs/ directory.
type IngestRequest struct {
	DatasetId    ids.DatasetId
	FeaturesPath string
	FaiPath      string
	SequencePath string
	CacheRoot    string
	Options      policy.IngestOptions
	Sharding     artifact.ShardingPlan
}

// IngestReport summarizes a completed run for the CLI to print.
type IngestReport struct {
	DatasetId       ids.DatasetId
	GeneCount       int
	TranscriptCount int
	ContigCount     int
	AnomalyCounts   map[string]int
	Shards          []string
}

// Run executes the full ingest pipeline: parse the feature table, fold it
// into gene/transcript rows, build the table store(s), and publish the
// result atomically under req.CacheRoot. It never mutates an
// already-published dataset; a second run for the same DatasetId fails
// with a Policy error from the publisher.
func Run(req IngestRequest) (*IngestReport, error) {
	const op = errs.Op("engine.Run")

	if _, err := policy.ParallelismPolicy(req.Options.MaxThreads); err != nil {
		return nil, errs.E(op, errs.KindValidation, "parallelism policy", err)
	}

	contigLengths, err := loadContigLengths(req.FaiPath, req.Options.Seqid)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "load contig lengths", err)
	}

	records, err := parseFeatures(req.FeaturesPath)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "parse feature table", err)
	}

	result, err := extract.ExtractGeneRows(records, contigLengths, req.Options)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	report, err := build(req, result)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return report, nil
}

func parseFeatures(path string) ([]*gff.FeatureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return gff.All(gff.NewParser(f))
}

func loadContigLengths(path string, seqids gff.SeqidPolicy) (map[string]uint64, error) {
	idx, err := faidx.Load(path)
	if err != nil {
		return nil, err
	}
	lengths := make(map[string]uint64)
	for seqid, n := range idx.Lengths() {
		lengths[seqids.Normalize(seqid)] = n
	}
	return lengths, nil
}

func build(req IngestRequest, result *extract.Result) (*IngestReport, error) {
	const op = errs.Op("engine.build")

	paths := publish.ArtifactPaths{Root: req.CacheRoot, DatasetId: req.DatasetId}
	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		return nil, errs.E(op, errs.KindInternal, "mkdir derived dir", err)
	}

	tmpDir, err := os.MkdirTemp(paths.DerivedDir(), "ingest-*")
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "create staging dir", err)
	}
	defer os.RemoveAll(tmpDir)

	catalog, geneIndex, shardPaths, err := artifact.BuildSharded(tmpDir, req.DatasetId, req.Sharding, result, canonical.SHA256File)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	geneIndexBytes, err := geneIndex.MarshalCanonical()
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "marshal release gene index", err)
	}
	geneIndexTmp := filepath.Join(tmpDir, "release_gene_index.json")
	if err := os.WriteFile(geneIndexTmp, geneIndexBytes, 0o644); err != nil {
		return nil, errs.E(op, errs.KindInternal, "write release gene index", err)
	}

	var staged []publish.StagedFile
	var shardNames []string
	for _, shardPath := range shardPaths {
		name := filepath.Base(shardPath)
		shardNames = append(shardNames, name)
		staged = append(staged, publish.StagedFile{
			TmpPath:   shardPath,
			FinalPath: filepath.Join(paths.DerivedDir(), name),
		})
	}
	staged = append(staged, publish.StagedFile{
		TmpPath:   geneIndexTmp,
		FinalPath: paths.ReleaseGeneIndexPath(),
	})

	inputStaged, err := stageInputFiles(tmpDir, paths, req.SequencePath, req.FaiPath)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	staged = append(staged, inputStaged...)

	manifest := &artifact.ArtifactManifest{
		SchemaVersion:   artifact.SchemaVersion,
		DatasetId:       req.DatasetId,
		GeneCount:       len(result.GeneRows),
		TranscriptCount: len(result.TranscriptRows),
		ContigCount:     len(result.ContigDistribution),
		Shards:          catalog,
	}

	pub := publish.NewPublisher(req.CacheRoot)
	if err := pub.Publish(paths, staged, manifest); err != nil {
		return nil, errs.Wrap(op, err)
	}

	return &IngestReport{
		DatasetId:       req.DatasetId,
		GeneCount:       len(result.GeneRows),
		TranscriptCount: len(result.TranscriptRows),
		ContigCount:     len(result.ContigDistribution),
		AnomalyCounts:   result.Anomaly.Counts(),
		Shards:          shardNames,
	}, nil
}

// stageInputFiles copies the sequence file (if provided) and its length
// index into tmpDir under names bound for inputs/, per spec.md §6's
// artifact layout and §4.4 step 1 ("write all payload files"). Both files
// are staged so the publisher digests and renames them exactly like the
// table store and gene index.
func stageInputFiles(tmpDir string, paths publish.ArtifactPaths, sequencePath, faiPath string) ([]publish.StagedFile, error) {
	compressed := isCompressedSequence(sequencePath)
	var staged []publish.StagedFile

	if sequencePath != "" {
		tmp := filepath.Join(tmpDir, filepath.Base(paths.SequencePath(compressed)))
		if err := copyFile(sequencePath, tmp); err != nil {
			return nil, fmt.Errorf("stage sequence file: %w", err)
		}
		staged = append(staged, publish.StagedFile{TmpPath: tmp, FinalPath: paths.SequencePath(compressed)})
	}

	tmpFai := filepath.Join(tmpDir, filepath.Base(paths.FaiPath(compressed)))
	if err := copyFile(faiPath, tmpFai); err != nil {
		return nil, fmt.Errorf("stage length index: %w", err)
	}
	staged = append(staged, publish.StagedFile{TmpPath: tmpFai, FinalPath: paths.FaiPath(compressed)})

	return staged, nil
}

func isCompressedSequence(sequencePath string) bool {
	return strings.HasSuffix(sequencePath, ".bgz") || strings.HasSuffix(sequencePath, ".gz")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}
