package gff

import (
	"io"
	"strings"
	"testing"
)

const fixture = "" +
	"# comment line\n" +
	"chr1\tensembl\tgene\t10\t40\t.\t+\t.\tID=gene1;Name=BRCA1;gene_biotype=protein_coding\n" +
	"chr1\tensembl\tmRNA\t10\t40\t.\t+\t.\tID=tx1;Parent=gene1\n" +
	"chr1\tensembl\texon\t10\t20\t.\t+\t.\tID=exon1;Parent=tx1\n" +
	"\n" +
	"chr1\tensembl\tCDS\t10\t20\t.\t+\t0\tID=cds1;Parent=tx1\n"

func TestParserProducesRecordsInOrder(t *testing.T) {
	p := NewParser(strings.NewReader(fixture))
	recs, err := All(p)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	if recs[0].FeatureType != "gene" || recs[0].Attributes["ID"] != "gene1" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Attributes["Parent"] != "gene1" {
		t.Fatalf("expected mRNA Parent=gene1, got %+v", recs[1])
	}
}

func TestParserSkipsCommentsAndBlankLines(t *testing.T) {
	p := NewParser(strings.NewReader("#a\n\n#b\nchr1\tx\tgene\t1\t2\t.\t+\t.\tID=g1\n"))
	recs, err := All(p)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
}

func TestParserRejectsWrongColumnCount(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\t1\t2\n"))
	_, err := p.Next()
	if err == nil {
		t.Fatalf("expected error for short line")
	}
	var perr *ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if perr.Line != 1 {
		t.Fatalf("expected line 1, got %d", perr.Line)
	}
}

func TestParserRejectsNonIntegerCoordinate(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\tNaN\t2\t.\t+\t.\tID=g1\n"))
	_, err := p.Next()
	if err == nil {
		t.Fatalf("expected error for non-integer start")
	}
}

func TestParserRejectsEndBeforeStart(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\t10\t5\t.\t+\t.\tID=g1\n"))
	_, err := p.Next()
	if err == nil {
		t.Fatalf("expected error for end < start")
	}
}

func TestParserRejectsStartBelowOne(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\t0\t5\t.\t+\t.\tID=g1\n"))
	_, err := p.Next()
	if err == nil {
		t.Fatalf("expected error for start < 1")
	}
}

func TestParserEOF(t *testing.T) {
	p := NewParser(strings.NewReader(""))
	_, err := p.Next()
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestDuplicateAttributeKeysTracked(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\t1\t2\t.\t+\t.\tID=g1;ID=g1dup\n"))
	rec, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(rec.DuplicateAttrKeys) != 1 || rec.DuplicateAttrKeys[0] != "ID" {
		t.Fatalf("expected duplicate key ID tracked, got %v", rec.DuplicateAttrKeys)
	}
	if rec.Attributes["ID"] != "g1dup" {
		t.Fatalf("expected last value to win, got %q", rec.Attributes["ID"])
	}
}

func TestMissingVsEmptyAttribute(t *testing.T) {
	p := NewParser(strings.NewReader("chr1\tx\tgene\t1\t2\t.\t+\t.\tID=g1;Name=\n"))
	rec, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	val, present := rec.Attributes["Name"]
	if !present || val != "" {
		t.Fatalf("expected Name present and empty, got present=%v val=%q", present, val)
	}
	if _, present := rec.Attributes["Missing"]; present {
		t.Fatalf("expected Missing key absent")
	}
}

func TestSeqidPolicyNormalize(t *testing.T) {
	var p SeqidPolicy
	if p.Normalize("chr1") != "1" {
		t.Fatalf("expected chr1 -> 1, got %s", p.Normalize("chr1"))
	}
	if p.Normalize("1") != "1" {
		t.Fatalf("expected 1 -> 1, got %s", p.Normalize("1"))
	}
	if p.Normalize("chrX") != "X" {
		t.Fatalf("expected chrX -> X, got %s", p.Normalize("chrX"))
	}
}

func asParseError(err error, target **ParseError) bool {
	if pe, ok := err.(*ParseError); ok {
		*target = pe
		return true
	}
	return false
}
