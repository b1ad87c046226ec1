package artifact

import (
	"fmt"
	"sort"

	"github.com/bijux/atlas-engine/internal/extract"
	"github.com/bijux/atlas-engine/internal/ids"
)

// ShardingPlan selects how a build call partitions rows across files.
type ShardingPlan uint8

const (
	// ShardingNone builds a single monolithic store.
	ShardingNone ShardingPlan = iota
	// ShardingContig builds one store per seqid.
	ShardingContig
)

// shard is one plan output: a name, the gene/transcript rows assigned to
// it, and the seqids it covers.
type shard struct {
	name           string
	seqids         []string
	geneRows       []extract.GeneRow
	transcriptRows []extract.TranscriptRow
}

// planShards partitions an extraction result according to plan. ShardingNone
// always yields exactly one shard named "gene_summary", carrying every row;
// ShardingContig yields one shard per distinct seqid in ascending order.
func planShards(plan ShardingPlan, result *extract.Result) []shard {
	if plan == ShardingNone {
		return []shard{{
			name:           "gene_summary",
			geneRows:       result.GeneRows,
			transcriptRows: result.TranscriptRows,
		}}
	}

	genesBySeqid := make(map[string][]extract.GeneRow)
	txBySeqid := make(map[string][]extract.TranscriptRow)
	for _, g := range result.GeneRows {
		genesBySeqid[g.Seqid] = append(genesBySeqid[g.Seqid], g)
	}
	for _, t := range result.TranscriptRows {
		txBySeqid[t.Seqid] = append(txBySeqid[t.Seqid], t)
	}

	seqids := make([]string, 0, len(genesBySeqid))
	for s := range genesBySeqid {
		seqids = append(seqids, s)
	}
	sort.Strings(seqids)

	shards := make([]shard, 0, len(seqids))
	for _, s := range seqids {
		shards = append(shards, shard{
			name:           "gene_summary." + s,
			seqids:         []string{s},
			geneRows:       genesBySeqid[s],
			transcriptRows: txBySeqid[s],
		})
	}
	return shards
}

// distributionOf builds a sorted-by-key frequency table over keyOf(row)
// for a shard, matching the BTree-ordered counts the full build computes.
func distributionOf(rows []extract.GeneRow, keyOf func(extract.GeneRow) string) []extract.Distribution {
	counts := make(map[string]uint64)
	for _, r := range rows {
		counts[keyOf(r)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]extract.Distribution, 0, len(keys))
	for _, k := range keys {
		out = append(out, extract.Distribution{Key: k, Count: counts[k]})
	}
	return out
}

// shardFileName returns the deterministic on-disk file name for a shard.
func shardFileName(plan ShardingPlan, s shard) string {
	if plan == ShardingNone {
		return "gene_summary.sqlite"
	}
	return fmt.Sprintf("gene_summary.%s.sqlite", s.seqids[0])
}

// strategyFor maps a ShardingPlan to its manifest-facing strategy tag.
func strategyFor(plan ShardingPlan) ShardStrategy {
	switch plan {
	case ShardingContig:
		return ShardStrategyPerSeqid
	default:
		return ShardStrategyNone
	}
}

// BuildSharded builds one table store per shard under dir, returning the
// ShardCatalog describing them. For ShardingNone this still produces a
// single synthetic "gene_summary.sqlite" entry, so fan-out callers never
// special-case the unsharded case.
func BuildSharded(dir string, datasetID ids.DatasetId, plan ShardingPlan, result *extract.Result, fileHash func(path string) (string, error)) (*ShardCatalog, ReleaseGeneIndex, []string, error) {
	shards := planShards(plan, result)
	catalog := &ShardCatalog{DatasetId: datasetID, Strategy: strategyFor(plan)}
	var paths []string
	var geneIndex ReleaseGeneIndex

	for _, s := range shards {
		fileName := shardFileName(plan, s)
		path := dir + "/" + fileName
		shardResult := &extract.Result{
			GeneRows:            s.geneRows,
			TranscriptRows:      s.transcriptRows,
			BiotypeDistribution: distributionOf(s.geneRows, func(g extract.GeneRow) string { return g.Biotype }),
			ContigDistribution:  distributionOf(s.geneRows, func(g extract.GeneRow) string { return g.Seqid }),
		}
		store, err := Build(path, shardResult)
		if err != nil {
			return nil, ReleaseGeneIndex{}, nil, err
		}
		store.Close()

		hash, err := fileHash(path)
		if err != nil {
			return nil, ReleaseGeneIndex{}, nil, err
		}
		catalog.Shards = append(catalog.Shards, ShardEntry{
			Name:        s.name,
			Seqids:      s.seqids,
			FileName:    fileName,
			ContentHash: hash,
		})
		paths = append(paths, path)
		for _, g := range s.geneRows {
			geneIndex.Entries = append(geneIndex.Entries, GeneIndexEntry{GeneId: g.GeneId, Shard: fileName})
		}
	}
	return catalog, geneIndex, paths, nil
}
