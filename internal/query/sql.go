package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bijux/atlas-engine/internal/errs"
)

// allowedShardTableNames whitelists the dynamic "table name" a fan-out
// caller may pass as a shard identifier, the way srake's
// internal/database.AllowedTables whitelists dynamic table names before
// they're interpolated into SQL. Here the identifier never reaches SQL
// text directly (each shard is a distinct *artifact.Store/sql.DB, opened
// by file name, not ATTACHed by name) but the same validation discipline
// applies to the file-name fragment a ShardCatalog entry carries, since a
// corrupted catalog is untrusted input to the query layer.
var shardFileNamePattern = regexp.MustCompile(`^gene_summary(\.[A-Za-z0-9_.-]+)?\.sqlite$`)

// validateShardFileName rejects a shard file name that doesn't match the
// deterministic naming scheme internal/artifact produces, so a tampered or
// corrupted ShardCatalog can't smuggle a path-traversal-shaped string into
// a later filepath.Join.
func validateShardFileName(name string) error {
	if !shardFileNamePattern.MatchString(name) {
		return errs.E(errs.Op("query.validateShardFileName"), errs.KindInternal, fmt.Sprintf("invalid shard file name: %q", name))
	}
	return nil
}

const geneSelectColumns = `g.id, g.gene_id, g.name, g.biotype, g.seqid, g.start, g.end, g.transcript_count, g.sequence_length`

// buildGeneSelect renders the SQL statement and bind arguments for a gene
// request's filter, cursor, and ordering. forExplain omits the pagination
// predicate and the LIMIT clause (explain calls for the plan inspector
// care about index usage, not a particular page).
func buildGeneSelect(req GeneQueryRequest, limits QueryLimits, forExplain bool) (string, []interface{}, error) {
	var where []string
	var args []interface{}
	needsRtreeJoin := false

	f := req.Filter
	switch {
	case f.hasGeneId():
		where = append(where, "g.gene_id = ?")
		args = append(args, f.GeneId)
	case f.hasName():
		where = append(where, "g.name_normalized = ?")
		args = append(args, normalizeNameLookup(f.Name))
	case f.hasNamePrefix():
		where = append(where, "g.name_normalized LIKE ? || '%'")
		args = append(args, normalizeNameLookup(f.NamePrefix))
	}
	if f.hasBiotype() {
		where = append(where, "g.biotype = ?")
		args = append(args, f.Biotype)
	}
	if f.hasRegion() {
		needsRtreeJoin = true
		where = append(where, "g.seqid = ?", "r.start <= ?", "r.end >= ?")
		args = append(args, f.Region.Seqid, int64(f.Region.End), int64(f.Region.Start))
	}
	if f.predicateCount() == 0 && !req.AllowFullScan {
		return "", nil, errs.E(errs.Op("query.buildGeneSelect"), errs.KindPolicy, "request has no filter predicates and allow_full_scan is false")
	}

	from := "gene_summary g"
	if needsRtreeJoin {
		from += " JOIN gene_summary_rtree r ON r.gene_rowid = g.id"
	}

	if !forExplain && req.Cursor != "" {
		where = append(where, "(g.seqid, g.start, g.end, g.gene_id) > (?, ?, ?, ?)")
	}

	sqlText := fmt.Sprintf("SELECT %s FROM %s", geneSelectColumns, from)
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY g.seqid, g.start, g.end, g.gene_id ASC"
	if !forExplain {
		sqlText += fmt.Sprintf(" LIMIT %d", req.Limit+1)
	}
	return sqlText, args, nil
}

// appendCursorArgs appends the cursor's decomposed row-key components to
// args in the same order the WHERE clause's row-value comparison expects.
func appendCursorArgs(args []interface{}, seqid string, start, end uint64, geneID string) []interface{} {
	return append(args, seqid, int64(start), int64(end), geneID)
}

const transcriptSelectColumns = `t.transcript_id, t.parent_gene_id, t.transcript_type, t.biotype, t.seqid, t.start, t.end, t.exon_count, t.total_exon_span, t.cds_present`

// buildTranscriptSelect is buildGeneSelect's transcript-query analog.
func buildTranscriptSelect(req TranscriptQueryRequest, forExplain bool) (string, []interface{}, error) {
	var where []string
	var args []interface{}

	f := req.Filter
	if f.TranscriptId != "" {
		where = append(where, "t.transcript_id = ?")
		args = append(args, f.TranscriptId)
	}
	if f.ParentGeneId != "" {
		where = append(where, "t.parent_gene_id = ?")
		args = append(args, f.ParentGeneId)
	}
	if f.Biotype != "" {
		where = append(where, "t.biotype = ?")
		args = append(args, f.Biotype)
	}
	if f.TranscriptType != "" {
		where = append(where, "t.transcript_type = ?")
		args = append(args, f.TranscriptType)
	}
	if f.Region != nil {
		where = append(where, "t.seqid = ?", "t.start <= ?", "t.end >= ?")
		args = append(args, f.Region.Seqid, int64(f.Region.End), int64(f.Region.Start))
	}
	if f.predicateCount() == 0 {
		return "", nil, errs.E(errs.Op("query.buildTranscriptSelect"), errs.KindPolicy, "transcript request has no filter predicates")
	}

	from := "transcript_summary t"

	if !forExplain && req.Cursor != "" {
		where = append(where, "(t.seqid, t.start, t.transcript_id) > (?, ?, ?)")
	}

	sqlText := fmt.Sprintf("SELECT %s FROM %s", transcriptSelectColumns, from)
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY t.seqid, t.start, t.transcript_id ASC"
	if !forExplain {
		sqlText += fmt.Sprintf(" LIMIT %d", req.Limit+1)
	}
	return sqlText, args, nil
}
