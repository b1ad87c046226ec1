package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/errs"
)

// Validate enforces spec.md §4.6 step 1: limit and prefix-length bounds,
// region sanity, and a non-empty projection. It never touches storage.
func Validate(req GeneQueryRequest, limits QueryLimits) error {
	const op = errs.Op("query.Validate")

	if req.Limit < 1 || req.Limit > limits.MaxLimit {
		return errs.E(op, errs.KindValidation, fmt.Sprintf("limit must be in [1, %d], got %d", limits.MaxLimit, req.Limit))
	}
	if req.Filter.hasNamePrefix() {
		n := len(req.Filter.NamePrefix)
		if n < limits.MinPrefixLen {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("name_prefix length must be >= %d, got %d", limits.MinPrefixLen, n))
		}
		if n > limits.MaxPrefixLen {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("name_prefix length must be <= %d, got %d", limits.MaxPrefixLen, n))
		}
	}
	if req.Filter.hasRegion() {
		r := req.Filter.Region
		if r.End < r.Start {
			return errs.E(op, errs.KindValidation, "region end must be >= region start")
		}
		span := r.End - r.Start + 1
		if span > limits.MaxRegionSpan {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("region span must be <= %d, got %d", limits.MaxRegionSpan, span))
		}
	}
	if req.Fields.empty() {
		return errs.E(op, errs.KindValidation, "projection field set must be non-empty")
	}
	if req.Filter.hasNamePrefix() {
		cost := prefixCostUnits(len(req.Filter.NamePrefix))
		if cost > limits.MaxPrefixCostUnits {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("name_prefix estimated cost %d exceeds max_prefix_cost_units %d", cost, limits.MaxPrefixCostUnits))
		}
	}
	return nil
}

// ValidateTranscript is the transcript-query analog of Validate, using the
// planner's MaxTranscriptLimit bound.
func ValidateTranscript(req TranscriptQueryRequest, limits QueryLimits) error {
	const op = errs.Op("query.ValidateTranscript")
	if req.Limit < 1 || req.Limit > limits.MaxTranscriptLimit {
		return errs.E(op, errs.KindValidation, fmt.Sprintf("limit must be in [1, %d], got %d", limits.MaxTranscriptLimit, req.Limit))
	}
	if req.Filter.Region != nil {
		r := req.Filter.Region
		if r.End < r.Start {
			return errs.E(op, errs.KindValidation, "region end must be >= region start")
		}
	}
	return nil
}

// FastFailFromStats implements spec.md §4.6 step 2: a biotype or region
// seqid that does not appear in dataset_stats makes the request provably
// empty, and the planner rejects it before dispatching anything to the
// row-storage tables.
func FastFailFromStats(ctx context.Context, store *artifact.Store, req GeneQueryRequest) error {
	const op = errs.Op("query.FastFailFromStats")
	if req.Filter.hasBiotype() {
		ok, err := dimensionValueExists(ctx, store, "biotype", req.Filter.Biotype)
		if err != nil {
			return errs.Wrap(op, err)
		}
		if !ok {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("biotype does not exist in this dataset: %q", req.Filter.Biotype))
		}
	}
	if req.Filter.hasRegion() {
		ok, err := dimensionValueExists(ctx, store, "seqid", req.Filter.Region.Seqid)
		if err != nil {
			return errs.Wrap(op, err)
		}
		if !ok {
			return errs.E(op, errs.KindValidation, fmt.Sprintf("region seqid does not exist in this dataset: %q", req.Filter.Region.Seqid))
		}
	}
	return nil
}

func dimensionValueExists(ctx context.Context, store *artifact.Store, dimension, value string) (bool, error) {
	var count int
	row := store.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset_stats WHERE dimension = ? AND value = ?`, dimension, value)
	if err := row.Scan(&count); err != nil {
		return false, errs.E(errs.Op("query.dimensionValueExists"), errs.KindInternal, "scan dataset_stats", err)
	}
	return count > 0, nil
}

// CheckWorkUnits enforces spec.md §4.6 step 3: requests whose estimated
// cost exceeds MaxWorkUnits are rejected before execution.
func CheckWorkUnits(req GeneQueryRequest, limits QueryLimits) error {
	cost := estimateQueryCost(req)
	if cost.WorkUnits > limits.MaxWorkUnits {
		return errs.E(errs.Op("query.CheckWorkUnits"), errs.KindValidation,
			fmt.Sprintf("estimated work units %d exceeds max_work_units %d", cost.WorkUnits, limits.MaxWorkUnits))
	}
	return nil
}

// ExplainQueryPlan runs SQLite's EXPLAIN QUERY PLAN for the SQL a gene
// request would execute and returns each plan row's detail string. Used
// both by tests asserting index usage and by the executor's
// full-scan-rejection step.
func ExplainQueryPlan(ctx context.Context, store *artifact.Store, req GeneQueryRequest, limits QueryLimits) ([]string, error) {
	sqlText, args, err := buildGeneSelect(req, limits, true)
	if err != nil {
		return nil, err
	}
	return explainSQL(ctx, store, sqlText, args)
}

// ExplainTranscriptQueryPlan is the transcript-query analog of
// ExplainQueryPlan.
func ExplainTranscriptQueryPlan(ctx context.Context, store *artifact.Store, req TranscriptQueryRequest) ([]string, error) {
	sqlText, args, err := buildTranscriptSelect(req, true)
	if err != nil {
		return nil, err
	}
	return explainSQL(ctx, store, sqlText, args)
}

func explainSQL(ctx context.Context, store *artifact.Store, sqlText string, args []interface{}) ([]string, error) {
	const op = errs.Op("query.explainSQL")
	rows, err := store.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlText, args...)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "run explain query plan", err)
	}
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var id, parent, notUsed int
		var detail string
		if err := rows.Scan(&id, &parent, &notUsed, &detail); err != nil {
			return nil, errs.E(op, errs.KindInternal, "scan explain row", err)
		}
		plan = append(plan, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.KindInternal, "iterate explain rows", err)
	}
	return plan, nil
}

// checkNoFullScan rejects a plan containing a full table scan unless the
// request explicitly allows one, per spec.md §4.6 step 4. A step is a full
// scan when it names "SCAN <table>" without an accompanying "USING INDEX"
// or "USING COVERING INDEX" / virtual-table clause; SQLite's planner
// reports rtree virtual-table access as "SCAN gene_summary_rtree VIRTUAL
// TABLE INDEX ..." or "USING VIRTUAL TABLE INDEX", which is an indexed
// access path, not a sequential scan.
func checkNoFullScan(plan []string, allowFullScan bool) error {
	if allowFullScan {
		return nil
	}
	for _, step := range plan {
		lower := strings.ToLower(step)
		if !strings.Contains(lower, "scan") {
			continue
		}
		if strings.Contains(lower, "using index") || strings.Contains(lower, "using covering index") ||
			strings.Contains(lower, "virtual table index") || strings.Contains(lower, "using integer primary key") {
			continue
		}
		return errs.E(errs.Op("query.checkNoFullScan"), errs.KindPolicy, fmt.Sprintf("plan step requires a full table scan: %q", step))
	}
	return nil
}
