package artifact

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/extract"
)

// Build writes a fresh table store at path from an extraction result,
// inserting rows in the canonical order extract.ExtractGeneRows already
// produced. The caller is responsible for writing to a `.tmp` path and
// renaming it into place.
func Build(path string, result *extract.Result) (*Store, error) {
	const op = errs.Op("artifact.Build")

	store, err := Create(path)
	if err != nil {
		return nil, err
	}

	tx, err := store.Begin()
	if err != nil {
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "begin transaction", err)
	}

	geneStmt, err := tx.Prepare(`
		INSERT INTO gene_summary (
			id, gene_id, name, name_normalized, biotype, seqid, start, end,
			transcript_count, exon_count, total_exon_span, cds_present, sequence_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "prepare gene insert", err)
	}
	defer geneStmt.Close()

	rtreeStmt, err := tx.Prepare(`INSERT INTO gene_summary_rtree (gene_rowid, start, end) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "prepare rtree insert", err)
	}
	defer rtreeStmt.Close()

	for i, g := range result.GeneRows {
		id := int64(i + 1)
		normalized := normalizeName(g.GeneName)
		if _, err := geneStmt.Exec(
			id, g.GeneId, g.GeneName, normalized, g.Biotype, g.Seqid, g.Start, g.End,
			g.TranscriptCount, g.ExonCount, g.TotalExonSpan, boolToInt(g.CdsPresent), g.SequenceLength,
		); err != nil {
			tx.Rollback()
			store.Close()
			return nil, errs.E(op, errs.KindInternal, "insert gene_summary row", err)
		}
		if _, err := rtreeStmt.Exec(id, g.Start, g.End); err != nil {
			tx.Rollback()
			store.Close()
			return nil, errs.E(op, errs.KindInternal, "insert rtree row", err)
		}
	}

	txStmt, err := tx.Prepare(`
		INSERT INTO transcript_summary (
			id, transcript_id, parent_gene_id, transcript_type, biotype, seqid, start, end,
			exon_count, total_exon_span, cds_present
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "prepare transcript insert", err)
	}
	defer txStmt.Close()

	for i, t := range result.TranscriptRows {
		var biotype interface{}
		if t.HasBiotype {
			biotype = t.Biotype
		}
		if _, err := txStmt.Exec(
			int64(i+1), t.TranscriptId, t.ParentGeneId, t.TranscriptType, biotype, t.Seqid, t.Start, t.End,
			t.ExonCount, t.TotalExonSpan, boolToInt(t.CdsPresent),
		); err != nil {
			tx.Rollback()
			store.Close()
			return nil, errs.E(op, errs.KindInternal, "insert transcript_summary row", err)
		}
	}

	statsStmt, err := tx.Prepare(`INSERT INTO dataset_stats (dimension, value, gene_count) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "prepare dataset_stats insert", err)
	}
	defer statsStmt.Close()

	for _, d := range result.BiotypeDistribution {
		if _, err := statsStmt.Exec("biotype", d.Key, d.Count); err != nil {
			tx.Rollback()
			store.Close()
			return nil, errs.E(op, errs.KindInternal, "insert dataset_stats biotype row", err)
		}
	}
	for _, d := range result.ContigDistribution {
		if _, err := statsStmt.Exec("seqid", d.Key, d.Count); err != nil {
			tx.Rollback()
			store.Close()
			return nil, errs.E(op, errs.KindInternal, "insert dataset_stats seqid row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		store.Close()
		return nil, errs.E(op, errs.KindInternal, "commit", err)
	}
	return store, nil
}

// normalizeName folds a gene name through NFKC normalization and
// lowercasing, the transform name_normalized indexes and prefix queries
// rely on so that visually-equivalent Unicode forms collide.
func normalizeName(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
