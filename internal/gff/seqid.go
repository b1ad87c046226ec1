package gff

import "strings"

// SeqidPolicy normalizes contig identifiers so that both the "chr1" and
// "1" spellings of the same contig resolve to a single canonical form.
// The zero value is ready to use and normalizes by stripping a leading
// "chr"/"Chr"/"CHR" prefix, which covers the common Ensembl-vs-UCSC
// convention mismatch named in spec.md §4.1.
type SeqidPolicy struct{}

// Normalize returns the canonical form of seqid.
func (SeqidPolicy) Normalize(seqid string) string {
	for _, prefix := range []string{"chr", "Chr", "CHR"} {
		if strings.HasPrefix(seqid, prefix) && len(seqid) > len(prefix) {
			return seqid[len(prefix):]
		}
	}
	return seqid
}
