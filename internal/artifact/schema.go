// Package artifact builds and opens the indexed table store that backs a
// published dataset: a SQLite file (or one per shard) holding gene_summary,
// transcript_summary, and dataset_stats, plus the spatial and secondary
// indexes the query layer depends on.
package artifact

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bijux/atlas-engine/internal/errs"
)

// SchemaVersion is carried in the manifest; bumping it signals a DDL change
// that invalidates any cached artifact built under an older version.
const SchemaVersion = 1

const schemaDDL = `
CREATE TABLE gene_summary (
  id INTEGER PRIMARY KEY,
  gene_id TEXT NOT NULL,
  name TEXT NOT NULL,
  name_normalized TEXT NOT NULL,
  biotype TEXT NOT NULL,
  seqid TEXT NOT NULL,
  start INTEGER NOT NULL,
  end INTEGER NOT NULL,
  transcript_count INTEGER NOT NULL,
  exon_count INTEGER NOT NULL DEFAULT 0,
  total_exon_span INTEGER NOT NULL DEFAULT 0,
  cds_present INTEGER NOT NULL DEFAULT 0,
  sequence_length INTEGER NOT NULL
);
CREATE TABLE transcript_summary (
  id INTEGER PRIMARY KEY,
  transcript_id TEXT NOT NULL UNIQUE,
  parent_gene_id TEXT NOT NULL,
  transcript_type TEXT NOT NULL,
  biotype TEXT,
  seqid TEXT NOT NULL,
  start INTEGER NOT NULL,
  end INTEGER NOT NULL,
  exon_count INTEGER NOT NULL DEFAULT 0,
  total_exon_span INTEGER NOT NULL DEFAULT 0,
  cds_present INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE dataset_stats (
  dimension TEXT NOT NULL,
  value TEXT NOT NULL,
  gene_count INTEGER NOT NULL,
  PRIMARY KEY (dimension, value)
);
CREATE VIRTUAL TABLE gene_summary_rtree USING rtree(gene_rowid, start, end);
CREATE INDEX idx_gene_summary_gene_id ON gene_summary(gene_id);
CREATE INDEX idx_gene_summary_name ON gene_summary(name);
CREATE INDEX idx_gene_summary_name_normalized ON gene_summary(name_normalized);
CREATE INDEX idx_gene_summary_biotype ON gene_summary(biotype);
CREATE INDEX idx_gene_summary_region ON gene_summary(seqid, start, end);
CREATE INDEX idx_transcript_summary_transcript_id ON transcript_summary(transcript_id);
CREATE INDEX idx_transcript_summary_parent_gene_id ON transcript_summary(parent_gene_id);
CREATE INDEX idx_transcript_summary_biotype ON transcript_summary(biotype);
CREATE INDEX idx_transcript_summary_type ON transcript_summary(transcript_type);
CREATE INDEX idx_transcript_summary_region ON transcript_summary(seqid, start, end);
`

// pragmas mirror the teacher's database.go connection tuning, scaled down
// for a store that is written once and then opened read-mostly.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = OFF",
	"PRAGMA busy_timeout = 10000",
}

// Store wraps the sqlite connection to one table store file.
type Store struct {
	*sql.DB
	path string
}

// Create opens a new, empty table store at path and installs the schema.
// path must not already exist as a populated store; callers build into a
// `.tmp` path and rename it into place via internal/publish.
func Create(path string) (*Store, error) {
	const op = errs.Op("artifact.Create")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("open %s", path), err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("pragma %s", p), err)
		}
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errs.E(op, errs.KindInternal, "create schema", err)
	}
	return &Store{DB: db, path: path}, nil
}

// Open opens an existing, already-built table store read-only.
func Open(path string) (*Store, error) {
	const op = errs.Op("artifact.Open")
	db, err := sql.Open("sqlite3", path+"?mode=ro&_query_only=true")
	if err != nil {
		return nil, errs.E(op, errs.KindInternal, fmt.Sprintf("open %s", path), err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.E(op, errs.KindCorrupted, fmt.Sprintf("open %s", path), err)
	}
	return &Store{DB: db, path: path}, nil
}

// Path returns the file path backing this store.
func (s *Store) Path() string {
	return s.path
}
