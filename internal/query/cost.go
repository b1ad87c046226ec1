package query

// Cost is the planner's dimensionless estimate for one request, as a single
// total; it does not record which predicate contributed how much.
type Cost struct {
	WorkUnits int
}

// classifyGeneQuery assigns a QueryClass per spec.md §4.6: a single-row
// exact gene_id lookup with no cursor is Cheap; an equality/bounded-prefix
// filter on an indexed column is Medium; anything touching a region window
// or combining multiple predicates is Heavy.
func classifyGeneQuery(req GeneQueryRequest) QueryClass {
	f := req.Filter
	if f.hasRegion() {
		return ClassHeavy
	}
	if f.predicateCount() > 1 {
		return ClassHeavy
	}
	if f.hasGeneId() && req.Cursor == "" && req.Limit <= 1 {
		return ClassCheap
	}
	if f.hasGeneId() || f.hasName() || f.hasNamePrefix() || f.hasBiotype() {
		return ClassMedium
	}
	return ClassHeavy
}

// ClassifyGeneQuery exposes classifyGeneQuery to callers outside this
// package (cmd/atlasctl, admission wiring) that need to pick an admission
// class before dispatching a request.
func ClassifyGeneQuery(req GeneQueryRequest) QueryClass {
	return classifyGeneQuery(req)
}

// ClassifyTranscriptQuery is classifyGeneQuery's transcript-query analog:
// a single-row exact transcript_id lookup with no cursor is Cheap, a
// single equality predicate is Medium, and a region window or anything
// combining multiple predicates is Heavy.
func ClassifyTranscriptQuery(req TranscriptQueryRequest) QueryClass {
	f := req.Filter
	if f.predicateCount() > 1 {
		return ClassHeavy
	}
	if f.TranscriptId != "" && req.Cursor == "" && req.Limit <= 1 {
		return ClassCheap
	}
	if f.predicateCount() == 1 && f.Region == nil {
		return ClassMedium
	}
	return ClassHeavy
}

// prefixCostUnits implements the monotone-decreasing-with-length rule for
// name_prefix: a short prefix matches many rows (expensive), a long one is
// nearly a point lookup (cheap). A 1-char prefix costs 4096 units, a
// 2-char prefix 2048, and cost halves with each further character, floored
// at 1.
func prefixCostUnits(prefixLen int) int {
	base := 4096
	units := base >> (prefixLen - 1)
	if units < 1 {
		units = 1
	}
	return units
}

// regionCostUnits is ceil(span / 1024), the region work-unit rule from
// spec.md §4.6's calibration table.
func regionCostUnits(span uint64) int {
	if span == 0 {
		return 0
	}
	return int((span + 1023) / 1024)
}

// estimateWorkUnits computes the planner's cost estimate for a gene
// request. The rule is additive over set predicates and then scaled by an
// "unindexed combo" multiplier whenever more than one predicate is present,
// so adding any predicate to a request never lowers the estimate below the
// most-selective single-predicate baseline (the monotonicity property
// tested in spec.md §8.8).
func estimateWorkUnits(req GeneQueryRequest) int {
	f := req.Filter
	units := 0
	if f.hasGeneId() {
		units += 1
	}
	if f.hasName() {
		units += 3
	}
	if f.hasNamePrefix() {
		units += prefixCostUnits(len(f.NamePrefix))
	}
	if f.hasBiotype() {
		units += 8
	}
	if f.hasRegion() {
		units += regionCostUnits(f.Region.End - f.Region.Start + 1)
	}
	if f.predicateCount() == 0 {
		// An unfiltered scan is the worst case: charge it as a full region
		// over an unbounded span so it is always rejected unless the
		// caller explicitly allows a full scan.
		units = 1 << 20
	}
	if f.predicateCount() > 1 {
		units *= 10
	}
	return units
}

// estimateQueryCost wraps estimateWorkUnits in the Cost struct the
// planner's rejection path reports against MaxWorkUnits.
func estimateQueryCost(req GeneQueryRequest) Cost {
	return Cost{WorkUnits: estimateWorkUnits(req)}
}
