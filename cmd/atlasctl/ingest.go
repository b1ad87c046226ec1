package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/engine"
	"github.com/bijux/atlas-engine/internal/ids"
)

var (
	ingestDataset  string
	ingestFeatures string
	ingestFai      string
	ingestSequence string
	ingestSharded  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingest pipeline for one dataset",
	Long:  `Parses a feature table, folds it into gene/transcript rows, builds the table store(s), and publishes the result under the configured cache root.`,
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDataset, "dataset", "", `Dataset id as "release/species/assembly" (required)`)
	ingestCmd.Flags().StringVar(&ingestFeatures, "features", "", "Path to the feature table (required)")
	ingestCmd.Flags().StringVar(&ingestFai, "fai", "", "Path to the sequence length index (required)")
	ingestCmd.Flags().StringVar(&ingestSequence, "sequence", "", "Path to the sequence file (genome.fa[.bgz]); copied into the artifact's inputs/ directory if set")
	ingestCmd.Flags().BoolVar(&ingestSharded, "sharded", false, "Build one table store per contig instead of a monolithic one")
	ingestCmd.MarkFlagRequired("dataset")
	ingestCmd.MarkFlagRequired("features")
	ingestCmd.MarkFlagRequired("fai")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	datasetID, err := ids.Parse(ingestDataset)
	if err != nil {
		return fmt.Errorf("invalid --dataset: %w", err)
	}

	plan := artifact.ShardingNone
	if ingestSharded {
		plan = artifact.ShardingContig
	}

	ingestOpts, err := cfg.IngestOptionsValue()
	if err != nil {
		return fmt.Errorf("invalid ingest policy config: %w", err)
	}

	report, err := engine.Run(engine.IngestRequest{
		DatasetId:    datasetID,
		FeaturesPath: ingestFeatures,
		FaiPath:      ingestFai,
		SequencePath: ingestSequence,
		CacheRoot:    cfg.CacheRoot,
		Options:      ingestOpts,
		Sharding:     plan,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	printInfo("published %s", report.DatasetId.String())
	printInfo("  genes:       %d", report.GeneCount)
	printInfo("  transcripts: %d", report.TranscriptCount)
	printInfo("  contigs:     %d", report.ContigCount)
	printInfo("  shards:      %v", report.Shards)
	for kind, count := range report.AnomalyCounts {
		if count > 0 {
			printInfo("  anomaly %s: %d", kind, count)
		}
	}
	return nil
}
