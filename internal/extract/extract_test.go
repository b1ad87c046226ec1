package extract

import (
	"testing"

	"github.com/bijux/atlas-engine/internal/gff"
	"github.com/bijux/atlas-engine/internal/policy"
)

func rec(seqid, featureType string, start, end int64, attrs map[string]string) *gff.FeatureRecord {
	return &gff.FeatureRecord{
		Seqid:       seqid,
		FeatureType: featureType,
		Start:       start,
		End:         end,
		Attributes:  attrs,
	}
}

func TestExtractGeneRowsBasic(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("1", "gene", 100, 200, map[string]string{"ID": "gene:ENSG001", "gene_biotype": "protein_coding"}),
		rec("1", "mRNA", 100, 200, map[string]string{"ID": "transcript:ENST001", "Parent": "gene:ENSG001"}),
		rec("1", "exon", 100, 150, map[string]string{"Parent": "transcript:ENST001"}),
		rec("1", "exon", 160, 200, map[string]string{"Parent": "transcript:ENST001"}),
		rec("1", "CDS", 105, 195, map[string]string{"Parent": "transcript:ENST001"}),
	}
	contigLengths := map[string]uint64{"1": 1000}
	opts := policy.DefaultIngestOptions()

	result, err := ExtractGeneRows(records, contigLengths, opts)
	if err != nil {
		t.Fatalf("ExtractGeneRows: %v", err)
	}
	if len(result.GeneRows) != 1 {
		t.Fatalf("expected 1 gene row, got %d", len(result.GeneRows))
	}
	g := result.GeneRows[0]
	if g.GeneId != "gene:ENSG001" || g.TranscriptCount != 1 || g.ExonCount != 2 || !g.CdsPresent {
		t.Fatalf("unexpected gene row: %+v", g)
	}
	if g.TotalExonSpan != 51+41 {
		t.Fatalf("total exon span = %d, want %d", g.TotalExonSpan, 51+41)
	}
	if len(result.TranscriptRows) != 1 {
		t.Fatalf("expected 1 transcript row, got %d", len(result.TranscriptRows))
	}
}

func TestExtractGeneRowsUnknownContigLenient(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("9", "gene", 1, 10, map[string]string{"ID": "gene:X"}),
	}
	opts := policy.DefaultIngestOptions()
	opts.Strictness = policy.Lenient

	result, err := ExtractGeneRows(records, map[string]uint64{}, opts)
	if err != nil {
		t.Fatalf("unexpected error in lenient mode: %v", err)
	}
	if len(result.GeneRows) != 0 {
		t.Fatalf("expected no gene rows, got %d", len(result.GeneRows))
	}
	if len(result.Anomaly.UnknownContigs) != 1 || result.Anomaly.UnknownContigs[0] != "9" {
		t.Fatalf("expected unknown_contigs=[9], got %v", result.Anomaly.UnknownContigs)
	}
}

func TestExtractGeneRowsUnknownContigStrictFails(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("9", "gene", 1, 10, map[string]string{"ID": "gene:X"}),
	}
	opts := policy.DefaultIngestOptions()
	opts.Strictness = policy.Strict

	if _, err := ExtractGeneRows(records, map[string]uint64{}, opts); err == nil {
		t.Fatal("expected error in strict mode for unknown contig")
	}
}

func TestExtractGeneRowsDuplicateGeneIdDedupe(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("2", "gene", 500, 600, map[string]string{"ID": "gene:DUP"}),
		rec("1", "gene", 100, 200, map[string]string{"ID": "gene:DUP"}),
	}
	opts := policy.DefaultIngestOptions()
	opts.DuplicateGeneId = policy.DedupeKeepLexicographicallySmallest

	result, err := ExtractGeneRows(records, map[string]uint64{"1": 1000, "2": 1000}, opts)
	if err != nil {
		t.Fatalf("ExtractGeneRows: %v", err)
	}
	if len(result.GeneRows) != 1 {
		t.Fatalf("expected 1 deduped gene row, got %d", len(result.GeneRows))
	}
	if result.GeneRows[0].Seqid != "1" {
		t.Fatalf("expected the seqid=1 candidate to win lexicographic dedupe, got %q", result.GeneRows[0].Seqid)
	}
	if len(result.Anomaly.DuplicateGeneIds) != 1 || result.Anomaly.DuplicateGeneIds[0] != "gene:DUP" {
		t.Fatalf("expected duplicate_gene_ids=[gene:DUP], got %v", result.Anomaly.DuplicateGeneIds)
	}
}

func TestExtractGeneRowsOrphanTranscriptDropped(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("1", "mRNA", 100, 200, map[string]string{"ID": "transcript:ORPHAN", "Parent": "gene:MISSING"}),
	}
	opts := policy.DefaultIngestOptions()

	result, err := ExtractGeneRows(records, map[string]uint64{"1": 1000}, opts)
	if err != nil {
		t.Fatalf("ExtractGeneRows: %v", err)
	}
	if len(result.TranscriptRows) != 0 {
		t.Fatalf("expected orphan transcript dropped, got %d rows", len(result.TranscriptRows))
	}
	found := false
	for _, m := range result.Anomaly.MissingParents {
		if m == "gene:MISSING" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing_parents to contain gene:MISSING, got %v", result.Anomaly.MissingParents)
	}
}

func TestExtractGeneRowsCanonicalSortOrder(t *testing.T) {
	records := []*gff.FeatureRecord{
		rec("1", "gene", 500, 600, map[string]string{"ID": "gene:B"}),
		rec("1", "gene", 100, 200, map[string]string{"ID": "gene:A"}),
	}
	opts := policy.DefaultIngestOptions()
	result, err := ExtractGeneRows(records, map[string]uint64{"1": 1000}, opts)
	if err != nil {
		t.Fatalf("ExtractGeneRows: %v", err)
	}
	if len(result.GeneRows) != 2 || result.GeneRows[0].GeneId != "gene:A" || result.GeneRows[1].GeneId != "gene:B" {
		t.Fatalf("expected ascending-start sort order, got %+v", result.GeneRows)
	}
}
