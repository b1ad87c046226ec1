package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/errs"
)

// geneScanRow is the raw, unprojected row the SQL layer returns; the
// executor trims it down to a GeneRow according to the request's Fields
// before returning to the caller.
type geneScanRow struct {
	id              int64
	geneID          string
	name            string
	biotype         string
	seqid           string
	start           int64
	end             int64
	transcriptCount int64
	sequenceLength  int64
}

func (r geneScanRow) sortKey() string {
	return geneRowKey(r.seqid, uint64(r.start), uint64(r.end), r.geneID)
}

func (r geneScanRow) project(fields GeneFields) GeneRow {
	out := GeneRow{GeneId: r.geneID}
	if fields.Name {
		out.Name = strPtr(r.name)
	}
	if fields.Coords {
		out.Seqid = strPtr(r.seqid)
		out.Start = u64Ptr(uint64(r.start))
		out.End = u64Ptr(uint64(r.end))
	}
	if fields.Biotype {
		out.Biotype = strPtr(r.biotype)
	}
	if fields.TranscriptCount {
		out.TranscriptCount = u64Ptr(uint64(r.transcriptCount))
	}
	if fields.SequenceLength {
		out.SequenceLength = u64Ptr(uint64(r.sequenceLength))
	}
	return out
}

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

// geneRowKeyParts is geneRowKey's decomposed inverse, used to turn a
// decoded cursor's row key back into bind arguments for the pagination
// predicate.
type geneRowKeyParts struct {
	seqid  string
	start  uint64
	end    uint64
	geneID string
}

func splitGeneRowKey(key string) (geneRowKeyParts, error) {
	const op = errs.Op("query.splitGeneRowKey")
	fields := splitPipe(key)
	if len(fields) != 4 {
		return geneRowKeyParts{}, errs.E(op, errs.KindCursor, "malformed gene row key: expected 4 fields")
	}
	var start, end uint64
	if _, err := fmt.Sscanf(fields[1], "%d", &start); err != nil {
		return geneRowKeyParts{}, errs.E(op, errs.KindCursor, "malformed gene row key start", err)
	}
	if _, err := fmt.Sscanf(fields[2], "%d", &end); err != nil {
		return geneRowKeyParts{}, errs.E(op, errs.KindCursor, "malformed gene row key end", err)
	}
	return geneRowKeyParts{seqid: fields[0], start: start, end: end, geneID: fields[3]}, nil
}

func splitPipe(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// enforceSerializationBound rejects a response whose canonical JSON
// encoding exceeds limits.MaxSerializationBytes, per spec.md §4.7: the
// check runs after row materialization, never as a streaming truncation.
func enforceSerializationBound(resp interface{}, limits QueryLimits) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return errs.E(errs.Op("query.enforceSerializationBound"), errs.KindInternal, "marshal response for size check", err)
	}
	if len(raw) > limits.MaxSerializationBytes {
		return errs.E(errs.Op("query.enforceSerializationBound"), errs.KindPolicy,
			fmt.Sprintf("serialized response %d bytes exceeds max_serialization_bytes %d", len(raw), limits.MaxSerializationBytes))
	}
	return nil
}

// scanGeneRows runs sqlText/args against store and decodes every row.
func scanGeneRows(ctx context.Context, store *artifact.Store, sqlText string, args []interface{}) ([]geneScanRow, error) {
	const op = errs.Op("query.scanGeneRows")
	rows, err := store.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "execute gene query", err)
	}
	defer rows.Close()

	var out []geneScanRow
	for rows.Next() {
		var r geneScanRow
		if err := rows.Scan(&r.id, &r.geneID, &r.name, &r.biotype, &r.seqid, &r.start, &r.end, &r.transcriptCount, &r.sequenceLength); err != nil {
			return nil, errs.E(op, errs.KindInternal, "scan gene row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.KindInternal, "iterate gene rows", err)
	}
	return out, nil
}

// planAndValidate runs every Planner step (validation, fast-fail, cost,
// plan inspection, cursor check) and returns the decoded cursor (nil if
// the request had none) plus the normalization hash to sign the next page
// with. It is shared by QueryGenes and QueryGenesFanout so both paths
// enforce identical policy.
func planAndValidate(ctx context.Context, store *artifact.Store, req GeneQueryRequest, limits QueryLimits, secret []byte) (*decodedCursor, string, error) {
	if err := Validate(req, limits); err != nil {
		return nil, "", err
	}
	if err := FastFailFromStats(ctx, store, req); err != nil {
		return nil, "", err
	}
	if err := CheckWorkUnits(req, limits); err != nil {
		return nil, "", err
	}

	normHash, err := normalizationHash(req)
	if err != nil {
		return nil, "", err
	}

	var cursor *decodedCursor
	if req.Cursor != "" {
		cursor, err = decodeCursor(secret, normHash, req.Cursor)
		if err != nil {
			return nil, "", err
		}
	}

	plan, err := ExplainQueryPlan(ctx, store, req, limits)
	if err != nil {
		return nil, "", err
	}
	if err := checkNoFullScan(plan, req.AllowFullScan); err != nil {
		return nil, "", err
	}

	return cursor, normHash, nil
}

// QueryGenes executes a validated gene request against a single table
// store: region windows via the rtree index, prefix/exact name lookups via
// name_normalized, equality filters via their secondary indexes, resuming
// strictly after the cursor's row key in canonical (seqid, start, end,
// gene_id) order.
func QueryGenes(ctx context.Context, store *artifact.Store, req GeneQueryRequest, limits QueryLimits, secret []byte) (*GeneQueryResponse, error) {
	cursor, normHash, err := planAndValidate(ctx, store, req, limits, secret)
	if err != nil {
		return nil, err
	}

	sqlText, args, err := buildGeneSelect(req, limits, false)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		parts, err := splitGeneRowKey(cursor.RowKey)
		if err != nil {
			return nil, err
		}
		args = appendCursorArgs(args, parts.seqid, parts.start, parts.end, parts.geneID)
	}

	rows, err := scanGeneRows(ctx, store, sqlText, args)
	if err != nil {
		return nil, err
	}

	resp, err := paginateGeneRows(rows, req, normHash, secret)
	if err != nil {
		return nil, err
	}
	if err := enforceSerializationBound(resp, limits); err != nil {
		return nil, err
	}
	return resp, nil
}

// paginateGeneRows trims a limit+1-sized result set down to limit rows and
// derives the next cursor from the last kept row, per spec.md §4.7: empty
// results always yield a nil next cursor.
func paginateGeneRows(rows []geneScanRow, req GeneQueryRequest, normHash string, secret []byte) (*GeneQueryResponse, error) {
	resp := &GeneQueryResponse{}
	if len(rows) == 0 {
		return resp, nil
	}

	hasMore := len(rows) > req.Limit
	if hasMore {
		rows = rows[:req.Limit]
	}

	resp.Rows = make([]GeneRow, len(rows))
	for i, r := range rows {
		resp.Rows[i] = r.project(req.Fields)
	}

	if hasMore {
		last := rows[len(rows)-1]
		token := encodeCursor(secret, normHash, last.sortKey())
		resp.NextCursor = &token
	}
	return resp, nil
}
