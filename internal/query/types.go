// Package query implements the Query Planner & Executor (F+G): it turns a
// GeneQueryRequest/TranscriptQueryRequest into a classified, cost-bounded
// plan, validates it against a store's dataset_stats before touching row
// storage, and executes it with a stable cursor discipline and shard
// fan-out. Grounded on the cost/column semantics of
// bijux-atlas-query/benches/query_patterns.rs and structured the way
// srake's internal/query.QueryEngine fronts multiple backends behind one
// engine type.
package query

import "github.com/bijux/atlas-engine/internal/artifact"

// GeneFields selects which gene_summary columns a query projects. A caller
// that only needs gene_id/name for a listing widget should not pay to
// serialize every column.
type GeneFields struct {
	GeneId          bool
	Name            bool
	Coords          bool
	Biotype         bool
	TranscriptCount bool
	SequenceLength  bool
}

// AllGeneFields is the default full projection.
func AllGeneFields() GeneFields {
	return GeneFields{
		GeneId: true, Name: true, Coords: true, Biotype: true,
		TranscriptCount: true, SequenceLength: true,
	}
}

// fieldCount reports how many projection flags are set, used by the
// heavy-projection-limit check.
func (f GeneFields) fieldCount() int {
	n := 0
	for _, b := range []bool{f.GeneId, f.Name, f.Coords, f.Biotype, f.TranscriptCount, f.SequenceLength} {
		if b {
			n++
		}
	}
	return n
}

func (f GeneFields) empty() bool {
	return f.fieldCount() == 0
}

// RegionFilter is a half-open-in-spirit, inclusive coordinate window on one
// seqid: start <= end, both 1-based inclusive, matching FeatureRecord.
type RegionFilter struct {
	Seqid string
	Start uint64
	End   uint64
}

// GeneFilter is any subset of the supported gene predicates. At most one of
// GeneId/Name/NamePrefix reaches the SQL at a time, in that order of
// precedence: a caller that sets both Name and NamePrefix gets Name honored
// and NamePrefix ignored by the query. Validate does not reject the
// combination; it still applies the NamePrefix length and cost bounds.
type GeneFilter struct {
	GeneId     string
	Name       string
	NamePrefix string
	Biotype    string
	Region     *RegionFilter
}

func (f GeneFilter) hasGeneId() bool     { return f.GeneId != "" }
func (f GeneFilter) hasName() bool       { return f.Name != "" }
func (f GeneFilter) hasNamePrefix() bool { return f.NamePrefix != "" }
func (f GeneFilter) hasBiotype() bool    { return f.Biotype != "" }
func (f GeneFilter) hasRegion() bool     { return f.Region != nil }

// predicateCount is the number of distinct predicates set on the filter,
// used for the "unindexed combo" cost multiplier and full-scan reasoning.
func (f GeneFilter) predicateCount() int {
	n := 0
	for _, b := range []bool{f.hasGeneId(), f.hasName(), f.hasNamePrefix(), f.hasBiotype(), f.hasRegion()} {
		if b {
			n++
		}
	}
	return n
}

// GeneQueryRequest is the caller-facing gene query. Cursor is opaque and
// carries the sort key of the last row emitted on a prior page.
type GeneQueryRequest struct {
	Fields        GeneFields
	Filter        GeneFilter
	Limit         int
	Cursor        string
	DatasetKey    string
	AllowFullScan bool
}

// GeneRow is one projected result row. Pointer fields are nil when the
// corresponding GeneFields flag was not requested, so a minimal projection
// serializes to a compact payload instead of null-padded columns.
type GeneRow struct {
	GeneId          string  `json:"gene_id"`
	Name            *string `json:"name,omitempty"`
	Seqid           *string `json:"seqid,omitempty"`
	Start           *uint64 `json:"start,omitempty"`
	End             *uint64 `json:"end,omitempty"`
	Biotype         *string `json:"biotype,omitempty"`
	TranscriptCount *uint64 `json:"transcript_count,omitempty"`
	SequenceLength  *uint64 `json:"sequence_length,omitempty"`
}

// GeneQueryResponse is the executor's result: the rows of this page plus an
// opaque cursor for the next one (nil once exhausted).
type GeneQueryResponse struct {
	Rows       []GeneRow `json:"rows"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

// TranscriptFilter is the transcript-query analog of GeneFilter.
type TranscriptFilter struct {
	TranscriptId   string
	ParentGeneId   string
	Biotype        string
	TranscriptType string
	Region         *RegionFilter
}

func (f TranscriptFilter) predicateCount() int {
	n := 0
	if f.TranscriptId != "" {
		n++
	}
	if f.ParentGeneId != "" {
		n++
	}
	if f.Biotype != "" {
		n++
	}
	if f.TranscriptType != "" {
		n++
	}
	if f.Region != nil {
		n++
	}
	return n
}

// TranscriptQueryRequest is the caller-facing transcript query, with its
// own limits and cursor discipline, independent of gene queries.
type TranscriptQueryRequest struct {
	Filter TranscriptFilter
	Limit  int
	Cursor string
}

// TranscriptRow is one transcript_summary result row.
type TranscriptRow struct {
	TranscriptId   string  `json:"transcript_id"`
	ParentGeneId   string  `json:"parent_gene_id"`
	TranscriptType string  `json:"transcript_type"`
	Biotype        *string `json:"biotype,omitempty"`
	Seqid          string  `json:"seqid"`
	Start          uint64  `json:"start"`
	End            uint64  `json:"end"`
	ExonCount      uint64  `json:"exon_count"`
	TotalExonSpan  uint64  `json:"total_exon_span"`
	CdsPresent     bool    `json:"cds_present"`
}

// TranscriptQueryResponse mirrors GeneQueryResponse for transcripts.
type TranscriptQueryResponse struct {
	Rows       []TranscriptRow `json:"rows"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// QueryLimits bounds what the planner will accept, per spec.md §3.
type QueryLimits struct {
	MaxLimit               int
	MaxTranscriptLimit     int
	MaxRegionSpan          uint64
	MaxRegionEstimatedRows int
	MaxPrefixCostUnits     int
	HeavyProjectionLimit   int
	MinPrefixLen           int
	MaxPrefixLen           int
	MaxWorkUnits           int
	MaxSerializationBytes  int
}

// DefaultQueryLimits matches the calibration used by the pack's own
// benchmark/test harness (bijux-atlas-query's `limits()` helper).
func DefaultQueryLimits() QueryLimits {
	return QueryLimits{
		MaxLimit:               500,
		MaxTranscriptLimit:     500,
		MaxRegionSpan:          5_000_000,
		MaxRegionEstimatedRows: 1_000,
		MaxPrefixCostUnits:     80_000,
		HeavyProjectionLimit:   200,
		MinPrefixLen:           2,
		MaxPrefixLen:           64,
		MaxWorkUnits:           2_000,
		MaxSerializationBytes:  512 * 1024,
	}
}

// QueryClass is the planner's classification of a request, used for
// admission and for picking the fast vs. general execution path.
type QueryClass string

const (
	ClassCheap  QueryClass = "cheap"
	ClassMedium QueryClass = "medium"
	ClassHeavy  QueryClass = "heavy"
)

// shardCatalogView is the subset of artifact.ShardCatalog the executor
// needs for fan-out shard selection, kept separate from the artifact
// package's JSON-facing type so the executor depends only on field values.
type shardCatalogView struct {
	strategy artifact.ShardStrategy
	entries  []artifact.ShardEntry
}

func viewOf(c *artifact.ShardCatalog) shardCatalogView {
	if c == nil {
		return shardCatalogView{strategy: artifact.ShardStrategyNone}
	}
	return shardCatalogView{strategy: c.Strategy, entries: c.Shards}
}
