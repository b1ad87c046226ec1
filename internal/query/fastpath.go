package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/errs"
)

// QueryGeneByIDFast is the point-lookup fast path of spec.md §4.7: a single
// gene_id exact match with minimal projection, short-circuiting the general
// planner/cursor machinery entirely. Returns (nil, nil) when no row
// matches.
func QueryGeneByIDFast(ctx context.Context, store *artifact.Store, geneID string, fields GeneFields) (*GeneRow, error) {
	const op = errs.Op("query.QueryGeneByIDFast")
	row := store.QueryRowContext(ctx, "SELECT "+geneSelectColumns+" FROM gene_summary g WHERE g.gene_id = ?", geneID)

	var r geneScanRow
	err := row.Scan(&r.id, &r.geneID, &r.name, &r.biotype, &r.seqid, &r.start, &r.end, &r.transcriptCount, &r.sequenceLength)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.E(op, errs.KindInternal, "scan fast-path gene row", err)
	}
	out := r.project(fields)
	return &out, nil
}

// QueryGeneIDNameJSONMinimalFast returns a precomposed, already-serialized
// {"gene_id":...,"name":...} payload for a gene_id exact lookup, avoiding
// both the cursor machinery and the general GeneRow projection path. This
// is the fast path spec.md §4.7 describes as returning "a precomposed JSON
// payload to avoid the full serialization path." Returns (nil, nil) when no
// row matches.
func QueryGeneIDNameJSONMinimalFast(ctx context.Context, store *artifact.Store, geneID string) ([]byte, error) {
	const op = errs.Op("query.QueryGeneIDNameJSONMinimalFast")
	row := store.QueryRowContext(ctx, "SELECT gene_id, name FROM gene_summary WHERE gene_id = ?", geneID)

	var id, name string
	if err := row.Scan(&id, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.E(op, errs.KindInternal, "scan fast-path minimal row", err)
	}
	payload := fmt.Sprintf(`{"gene_id":%q,"name":%q}`, id, name)
	return []byte(payload), nil
}
