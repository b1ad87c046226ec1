package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bijux/atlas-engine/internal/cache"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/metrics"
	"github.com/bijux/atlas-engine/internal/query"
	"github.com/bijux/atlas-engine/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a gene or transcript query against a published dataset",
}

var (
	queryDataset string
	queryLimit   int
)

var queryGeneCmd = &cobra.Command{
	Use:   "gene",
	Short: "Query the gene_summary table",
	RunE:  runQueryGene,
}

var queryTranscriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Query the transcript_summary table",
	RunE:  runQueryTranscript,
}

var (
	queryGeneId      string
	queryName        string
	queryNamePrefix  string
	queryBiotype     string
	queryRegionSeqid string
	queryRegionStart uint64
	queryRegionEnd   uint64
)

var (
	queryTranscriptId     string
	queryParentGeneId     string
	queryTranscriptBio    string
	queryTranscriptType   string
	queryTranscriptCursor string
)

// queryAdmission gates every atlasctl query subcommand behind the same
// class-scoped semaphores a long-running server would use, so a CLI run
// exercises spec.md §5's admission control rather than bypassing it the
// way a direct QueryGenes/QueryTranscripts call would. It is a process-wide
// singleton, constructed once with its own metrics tape (the engine's
// "no implicit init" rule still holds: this is atlasctl's explicit
// construction site, not a hidden global).
var queryAdmission = query.NewAdmission(query.DefaultAdmissionConfig(), metrics.NewTape())

func init() {
	queryCmd.PersistentFlags().StringVar(&queryDataset, "dataset", "", `Dataset id as "release/species/assembly" (required)`)
	queryCmd.PersistentFlags().IntVar(&queryLimit, "limit", 50, "Maximum rows to return")
	queryCmd.MarkPersistentFlagRequired("dataset")

	queryGeneCmd.Flags().StringVar(&queryGeneId, "gene-id", "", "Exact gene_id match")
	queryGeneCmd.Flags().StringVar(&queryName, "name", "", "Exact normalized name match")
	queryGeneCmd.Flags().StringVar(&queryNamePrefix, "name-prefix", "", "Normalized name prefix match")
	queryGeneCmd.Flags().StringVar(&queryBiotype, "biotype", "", "Exact biotype match")
	queryGeneCmd.Flags().StringVar(&queryRegionSeqid, "region-seqid", "", "Region filter: seqid")
	queryGeneCmd.Flags().Uint64Var(&queryRegionStart, "region-start", 0, "Region filter: start")
	queryGeneCmd.Flags().Uint64Var(&queryRegionEnd, "region-end", 0, "Region filter: end")

	queryTranscriptCmd.Flags().StringVar(&queryTranscriptId, "transcript-id", "", "Exact transcript_id match")
	queryTranscriptCmd.Flags().StringVar(&queryParentGeneId, "parent-gene-id", "", "Exact parent_gene_id match")
	queryTranscriptCmd.Flags().StringVar(&queryTranscriptBio, "biotype", "", "Exact biotype match")
	queryTranscriptCmd.Flags().StringVar(&queryTranscriptType, "transcript-type", "", "Exact transcript_type match")
	queryTranscriptCmd.Flags().StringVar(&queryTranscriptCursor, "cursor", "", "Opaque cursor from a prior page")
	queryTranscriptCmd.Flags().StringVar(&queryRegionSeqid, "region-seqid", "", "Region filter: seqid")
	queryTranscriptCmd.Flags().Uint64Var(&queryRegionStart, "region-start", 0, "Region filter: start")
	queryTranscriptCmd.Flags().Uint64Var(&queryRegionEnd, "region-end", 0, "Region filter: end")

	queryCmd.AddCommand(queryGeneCmd)
	queryCmd.AddCommand(queryTranscriptCmd)
}

func openCacheAndDataset(ctx context.Context) (*cache.DatasetCache, *cache.Handle, ids.DatasetId, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, ids.DatasetId{}, fmt.Errorf("load config: %w", err)
	}
	datasetID, err := ids.Parse(queryDataset)
	if err != nil {
		return nil, nil, ids.DatasetId{}, fmt.Errorf("invalid --dataset: %w", err)
	}

	backend := store.NewLocalFsBackend(cfg.CacheRoot)
	tape := metrics.NewTape()
	dc := cache.NewDatasetCache(cfg.CacheRoot, backend, cfg.CacheConfigValue(), tape)

	handle, err := dc.Open(ctx, datasetID)
	if err != nil {
		return nil, nil, ids.DatasetId{}, fmt.Errorf("open dataset: %w", err)
	}
	return dc, handle, datasetID, nil
}

func runQueryGene(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, handle, _, err := openCacheAndDataset(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()

	req := query.GeneQueryRequest{
		Fields: query.AllGeneFields(),
		Filter: query.GeneFilter{
			GeneId:     queryGeneId,
			Name:       queryName,
			NamePrefix: queryNamePrefix,
			Biotype:    queryBiotype,
		},
		Limit: queryLimit,
	}
	if queryRegionSeqid != "" {
		req.Filter.Region = &query.RegionFilter{Seqid: queryRegionSeqid, Start: queryRegionStart, End: queryRegionEnd}
	}

	secret, err := cursorSecret()
	if err != nil {
		return err
	}

	release, err := queryAdmission.Acquire(ctx, query.ClassifyGeneQuery(req))
	if err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	defer release()

	resp, err := query.QueryGenes(ctx, handle.Store(), req, query.DefaultQueryLimits(), secret)
	if err != nil {
		return fmt.Errorf("query genes: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runQueryTranscript(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, handle, _, err := openCacheAndDataset(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()

	req := query.TranscriptQueryRequest{
		Filter: query.TranscriptFilter{
			TranscriptId:   queryTranscriptId,
			ParentGeneId:   queryParentGeneId,
			Biotype:        queryTranscriptBio,
			TranscriptType: queryTranscriptType,
		},
		Limit:  queryLimit,
		Cursor: queryTranscriptCursor,
	}
	if queryRegionSeqid != "" {
		req.Filter.Region = &query.RegionFilter{Seqid: queryRegionSeqid, Start: queryRegionStart, End: queryRegionEnd}
	}

	secret, err := cursorSecret()
	if err != nil {
		return err
	}

	release, err := queryAdmission.Acquire(ctx, query.ClassifyTranscriptQuery(req))
	if err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	defer release()

	resp, err := query.QueryTranscripts(ctx, handle.Store(), req, query.DefaultQueryLimits(), secret)
	if err != nil {
		return fmt.Errorf("query transcripts: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// cursorSecret returns a process-lifetime-only signing secret for ad hoc
// CLI queries: a cursor issued by one atlasctl invocation is not expected
// to be valid across invocations, unlike a long-running server process
// that loads CursorSecretHex from config.
func cursorSecret() ([]byte, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.CursorSecretHex != "" {
		return hex.DecodeString(cfg.CursorSecretHex)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate cursor secret: %w", err)
	}
	return secret, nil
}
