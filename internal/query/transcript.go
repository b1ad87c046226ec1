package query

import (
	"context"
	"fmt"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/errs"
)

// transcriptScanRow is the raw row the transcript SQL layer returns.
type transcriptScanRow struct {
	transcriptID   string
	parentGeneID   string
	transcriptType string
	biotype        *string
	seqid          string
	start          int64
	end            int64
	exonCount      int64
	totalExonSpan  int64
	cdsPresent     int64
}

func (r transcriptScanRow) sortKey() string {
	return transcriptRowKey(r.seqid, uint64(r.start), r.transcriptID)
}

func (r transcriptScanRow) toRow() TranscriptRow {
	return TranscriptRow{
		TranscriptId:   r.transcriptID,
		ParentGeneId:   r.parentGeneID,
		TranscriptType: r.transcriptType,
		Biotype:        r.biotype,
		Seqid:          r.seqid,
		Start:          uint64(r.start),
		End:            uint64(r.end),
		ExonCount:      uint64(r.exonCount),
		TotalExonSpan:  uint64(r.totalExonSpan),
		CdsPresent:     r.cdsPresent != 0,
	}
}

func scanTranscriptRows(ctx context.Context, store *artifact.Store, sqlText string, args []interface{}) ([]transcriptScanRow, error) {
	const op = errs.Op("query.scanTranscriptRows")
	rows, err := store.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, "execute transcript query", err)
	}
	defer rows.Close()

	var out []transcriptScanRow
	for rows.Next() {
		var r transcriptScanRow
		if err := rows.Scan(&r.transcriptID, &r.parentGeneID, &r.transcriptType, &r.biotype, &r.seqid, &r.start, &r.end, &r.exonCount, &r.totalExonSpan, &r.cdsPresent); err != nil {
			return nil, errs.E(op, errs.KindInternal, "scan transcript row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(op, errs.KindInternal, "iterate transcript rows", err)
	}
	return out, nil
}

func splitTranscriptRowKey(key string) (seqid string, start uint64, transcriptID string, err error) {
	const op = errs.Op("query.splitTranscriptRowKey")
	fields := splitPipe(key)
	if len(fields) != 3 {
		return "", 0, "", errs.E(op, errs.KindCursor, "malformed transcript row key: expected 3 fields")
	}
	if _, scanErr := fmt.Sscanf(fields[1], "%d", &start); scanErr != nil {
		return "", 0, "", errs.E(op, errs.KindCursor, "malformed transcript row key start", scanErr)
	}
	return fields[0], start, fields[2], nil
}

// transcriptPlanAndValidate is planAndValidate's transcript-query analog:
// validation, cursor verification against the transcript normalization
// hash, and the full-scan plan-inspection gate, mirroring the gene path's
// sequence so both query surfaces enforce identical policy (spec.md §4.6
// step 4, §4.7 "an identical cursor discipline"). Transcript requests have
// no allow_full_scan escape hatch, so the gate is unconditional.
func transcriptPlanAndValidate(ctx context.Context, store *artifact.Store, req TranscriptQueryRequest, limits QueryLimits, secret []byte) (*decodedCursor, string, error) {
	if err := ValidateTranscript(req, limits); err != nil {
		return nil, "", err
	}

	normHash, err := transcriptNormalizationHash(req)
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

	plan, err := ExplainTranscriptQueryPlan(ctx, store, req)
	if err != nil {
		return nil, "", err
	}
	if err := checkNoFullScan(plan, false); err != nil {
		return nil, "", err
	}

	return cursor, normHash, nil
}

// QueryTranscripts executes a validated transcript request with its own
// limits, indexes, and cursor discipline, independent of gene queries (per
// spec.md §4.7): the cursor is HMAC-signed over the transcript
// normalization hash exactly as QueryGenes signs its own, and every plan
// is checked for a full table scan before execution.
func QueryTranscripts(ctx context.Context, store *artifact.Store, req TranscriptQueryRequest, limits QueryLimits, secret []byte) (*TranscriptQueryResponse, error) {
	cursor, normHash, err := transcriptPlanAndValidate(ctx, store, req, limits, secret)
	if err != nil {
		return nil, err
	}

	sqlText, args, err := buildTranscriptSelect(req, false)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		seqid, start, transcriptID, err := splitTranscriptRowKey(cursor.RowKey)
		if err != nil {
			return nil, err
		}
		args = append(args, seqid, int64(start), transcriptID)
	}

	rows, err := scanTranscriptRows(ctx, store, sqlText, args)
	if err != nil {
		return nil, err
	}

	resp := &TranscriptQueryResponse{}
	if len(rows) == 0 {
		return resp, nil
	}
	hasMore := len(rows) > req.Limit
	if hasMore {
		rows = rows[:req.Limit]
	}
	resp.Rows = make([]TranscriptRow, len(rows))
	for i, r := range rows {
		resp.Rows[i] = r.toRow()
	}
	if hasMore {
		token := encodeCursor(secret, normHash, rows[len(rows)-1].sortKey())
		resp.NextCursor = &token
	}
	if err := enforceSerializationBound(resp, limits); err != nil {
		return nil, err
	}
	return resp, nil
}
