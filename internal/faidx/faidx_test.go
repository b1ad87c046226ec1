package faidx

import (
	"strings"
	"testing"
)

const sample = "chr1\t248956422\t6\t60\t61\nchr2\t242193529\t248968666\t60\t61\n"

func TestParse(t *testing.T) {
	ix, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("expected 2 contigs, got %d", ix.Len())
	}
	rec, ok := ix.Lookup("chr1")
	if !ok {
		t.Fatalf("expected chr1 present")
	}
	if rec.Length != 248956422 || rec.Offset != 6 || rec.LineBases != 60 || rec.LineBytes != 61 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, ok := ix.Lookup("chr3"); ok {
		t.Fatalf("expected chr3 absent")
	}
}

func TestLengths(t *testing.T) {
	ix, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lengths := ix.Lengths()
	if lengths["chr2"] != 242193529 {
		t.Fatalf("unexpected length for chr2: %d", lengths["chr2"])
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("chr1\t100\n"))
	if err == nil {
		t.Fatalf("expected error for short line")
	}
}

func TestParseRejectsNonIntegerLength(t *testing.T) {
	_, err := Parse(strings.NewReader("chr1\tXYZ\t0\t60\t61\n"))
	if err == nil {
		t.Fatalf("expected error for non-integer length")
	}
}
