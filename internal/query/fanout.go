package query

import (
	"context"
	"sort"

	"github.com/bijux/atlas-engine/internal/artifact"
)

// SelectShardsForRequest implements spec.md §4.7's shard-selection rule:
// a region request is restricted to shards whose seqids intersect the
// region; any other request falls back to the monolithic
// "gene_summary.sqlite" synthetic shard, matching
// shard_selection_targets_region_seqid_and_defaults_global in the original
// implementation's test suite.
func SelectShardsForRequest(req GeneQueryRequest, catalog *artifact.ShardCatalog) []string {
	view := viewOf(catalog)
	if !req.Filter.hasRegion() || view.strategy == artifact.ShardStrategyNone || len(view.entries) == 0 {
		return []string{"gene_summary.sqlite"}
	}

	seqid := req.Filter.Region.Seqid
	var names []string
	for _, entry := range view.entries {
		for _, s := range entry.Seqids {
			if s == seqid {
				names = append(names, entry.FileName)
				break
			}
		}
	}
	if len(names) == 0 {
		return []string{"gene_summary.sqlite"}
	}
	return names
}

// QueryGenesFanout runs req against every store in shards and interleaves
// the results by the global canonical sort order, honoring req.Limit
// across the whole fan-out rather than per-shard. For a region request
// that fits entirely in one shard this is required to return row-for-row
// and cursor-for-cursor identical output to QueryGenes(monolith) (spec.md
// §8.6), which is why both paths share planAndValidate and
// paginateGeneRows.
func QueryGenesFanout(ctx context.Context, shards []*artifact.Store, req GeneQueryRequest, limits QueryLimits, secret []byte) (*GeneQueryResponse, error) {
	if len(shards) == 0 {
		return &GeneQueryResponse{}, nil
	}

	// Plan/validate once against the first shard: dataset_stats is
	// replicated identically across shards of the same dataset, and the
	// plan-inspection query shape doesn't depend on shard contents.
	cursor, normHash, err := planAndValidate(ctx, shards[0], req, limits, secret)
	if err != nil {
		return nil, err
	}

	sqlText, baseArgs, err := buildGeneSelect(req, limits, false)
	if err != nil {
		return nil, err
	}
	args := baseArgs
	if cursor != nil {
		parts, err := splitGeneRowKey(cursor.RowKey)
		if err != nil {
			return nil, err
		}
		args = appendCursorArgs(append([]interface{}{}, baseArgs...), parts.seqid, parts.start, parts.end, parts.geneID)
	}

	var merged []geneScanRow
	for _, shard := range shards {
		rows, err := scanGeneRows(ctx, shard, sqlText, args)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].sortKey() < merged[j].sortKey()
	})
	if len(merged) > req.Limit+1 {
		merged = merged[:req.Limit+1]
	}

	resp, err := paginateGeneRows(merged, req, normHash, secret)
	if err != nil {
		return nil, err
	}
	if err := enforceSerializationBound(resp, limits); err != nil {
		return nil, err
	}
	return resp, nil
}
