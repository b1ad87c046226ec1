package extract

import "sort"

// AnomalyReport collects the QC-visible irregularities extraction
// encounters. Every slice is sorted and deduplicated before being returned,
// so two runs over the same input always produce byte-identical reports.
type AnomalyReport struct {
	DuplicateGeneIds          []string
	MissingTranscriptParents  []string
	MultipleParentTranscripts []string
	MissingParents            []string
	UnknownContigs            []string
	OverlappingIds            []string
}

func stableSortedDedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	deduped := out[:0]
	var prev string
	first := true
	for _, v := range out {
		if first || v != prev {
			deduped = append(deduped, v)
			prev = v
			first = false
		}
	}
	return deduped
}

// Counts summarizes the report as a map from anomaly kind to count, the
// shape a harness command prints as a one-line QC summary.
func (a AnomalyReport) Counts() map[string]int {
	return map[string]int{
		"duplicate_gene_ids":          len(a.DuplicateGeneIds),
		"missing_transcript_parents":  len(a.MissingTranscriptParents),
		"multiple_parent_transcripts": len(a.MultipleParentTranscripts),
		"missing_parents":             len(a.MissingParents),
		"unknown_contigs":             len(a.UnknownContigs),
		"overlapping_ids":             len(a.OverlappingIds),
	}
}

// finalize sorts and dedups every field in place.
func (a *AnomalyReport) finalize() {
	a.DuplicateGeneIds = stableSortedDedup(a.DuplicateGeneIds)
	a.MissingTranscriptParents = stableSortedDedup(a.MissingTranscriptParents)
	a.MultipleParentTranscripts = stableSortedDedup(a.MultipleParentTranscripts)
	a.MissingParents = stableSortedDedup(a.MissingParents)
	a.UnknownContigs = stableSortedDedup(a.UnknownContigs)
	a.OverlappingIds = stableSortedDedup(a.OverlappingIds)
}
