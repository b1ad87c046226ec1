// Package faidx reads the length-index file that accompanies the sequence
// file: one line per contig of `seqid<TAB>length<TAB>offset<TAB>line_bases<TAB>line_bytes`.
// The engine only needs the length column (for coordinate range checks
// during ingest) and the seqid set (for fast-fail planning); offset and the
// line-wrapping columns are retained for completeness and for any future
// byte-range sequence access, but nothing in this engine parses sequence
// bases itself — the sequence file is treated as an opaque, digested blob.
package faidx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bijux/atlas-engine/internal/errs"
)

// Record is one parsed line of the length index.
type Record struct {
	Seqid     string
	Length    uint64
	Offset    uint64
	LineBases uint64
	LineBytes uint64
}

// Index maps seqid to its Record, preserving the set of known contigs.
type Index struct {
	records map[string]Record
}

// Lengths returns seqid -> length, the shape ingest needs for range checks.
func (ix *Index) Lengths() map[string]uint64 {
	out := make(map[string]uint64, len(ix.records))
	for k, v := range ix.records {
		out[k] = v.Length
	}
	return out
}

// Lookup returns the Record for seqid and whether it was present.
func (ix *Index) Lookup(seqid string) (Record, bool) {
	r, ok := ix.records[seqid]
	return r, ok
}

// Len returns the number of indexed contigs.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Load parses a length-index file from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.KindNotFound, fmt.Sprintf("open length index %s", path), err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses a length-index stream.
func Parse(r io.Reader) (*Index, error) {
	ix := &Index{records: make(map[string]Record)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, errs.E(errs.KindInternal, fmt.Sprintf("length index line %d: expected 5 tab-separated fields, got %d", lineNo, len(fields)))
		}
		rec := Record{Seqid: fields[0]}
		var parseErr error
		rec.Length, parseErr = strconv.ParseUint(fields[1], 10, 64)
		if parseErr == nil {
			rec.Offset, parseErr = strconv.ParseUint(fields[2], 10, 64)
		}
		if parseErr == nil {
			rec.LineBases, parseErr = strconv.ParseUint(fields[3], 10, 64)
		}
		if parseErr == nil {
			rec.LineBytes, parseErr = strconv.ParseUint(fields[4], 10, 64)
		}
		if parseErr != nil {
			return nil, errs.E(errs.KindInternal, fmt.Sprintf("length index line %d: non-integer field", lineNo), parseErr)
		}
		ix.records[rec.Seqid] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.E(errs.KindInternal, "length index scan failed", err)
	}
	return ix, nil
}
