package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/gff"
	"github.com/bijux/atlas-engine/internal/policy"
)

// Distribution is one (key, count) pair of a sorted-by-key frequency table.
type Distribution struct {
	Key   string
	Count uint64
}

// Result is the full output of ExtractGeneRows: the deduped, parent-folded
// rows plus the anomaly report and the two QC distributions.
type Result struct {
	GeneRows            []GeneRow
	TranscriptRows      []TranscriptRow
	Anomaly             AnomalyReport
	BiotypeDistribution []Distribution
	ContigDistribution  []Distribution
}

type parentErrorClass uint8

const (
	missingParentAttribute parentErrorClass = iota
	multipleParents
	missingReferencedParent
)

type parentRef struct {
	gene  string
	class parentErrorClass
}

// ExtractGeneRows folds a parsed feature table into gene and transcript
// rows, honoring opts for identity, biotype, name, duplicate, and
// transcript-type resolution. contigLengths maps normalized seqid to
// contig length, as produced by a faidx.Index filtered through the same
// opts.Seqid normalization.
//
// The algorithm is a single left-to-right pass building up per-gene
// candidate lists and pending transcript rows, followed by a
// dedup-then-fold stage that resolves duplicate gene_ids and attaches
// transcript aggregates to their parent gene. Every output slice and the
// anomaly report are sorted into a canonical order so two runs over the
// same input bytes produce identical artifacts.
func ExtractGeneRows(records []*gff.FeatureRecord, contigLengths map[string]uint64, opts policy.IngestOptions) (*Result, error) {
	const op = errs.Op("extract.ExtractGeneRows")

	genes := make(map[string][]GeneRow)
	var transcriptParents []parentRef
	var pending []TranscriptRow
	exonCounts := make(map[string]uint64)
	exonSpan := make(map[string]uint64)
	hasCds := make(map[string]bool)
	seenFeatureIds := make(map[string]string)

	var anomaly AnomalyReport
	strict := opts.Strictness.IsStrict()

	for _, rec := range records {
		seqid := opts.Seqid.Normalize(rec.Seqid)

		anomaly.OverlappingIds = append(anomaly.OverlappingIds, rec.DuplicateAttrKeys...)

		if fid, ok := rec.Attributes["ID"]; ok && fid != "" {
			if prevKind, ok := seenFeatureIds[fid]; ok {
				if prevKind != rec.FeatureType {
					anomaly.OverlappingIds = append(anomaly.OverlappingIds, fid)
				}
			} else {
				seenFeatureIds[fid] = rec.FeatureType
			}
		}

		switch {
		case rec.FeatureType == "gene":
			gff3ID := rec.Attributes["ID"]
			if gff3ID == "" {
				return nil, errs.E(op, errs.KindValidation, "gene feature missing ID attribute")
			}
			geneID, err := opts.GeneIdentifier.Resolve(rec.Attributes, gff3ID, strict)
			if err != nil {
				return nil, errs.E(op, errs.KindPolicy, err.Error())
			}

			contigLen, ok := contigLengths[seqid]
			if !ok {
				anomaly.UnknownContigs = append(anomaly.UnknownContigs, seqid)
				if strict {
					return nil, errs.E(op, errs.KindValidation, fmt.Sprintf("contig not found in length index: %s", seqid))
				}
				continue
			}
			if uint64(rec.End) > contigLen {
				if strict {
					return nil, errs.E(op, errs.KindValidation, fmt.Sprintf("gene %s coordinate end %d exceeds contig %s length %d", geneID, rec.End, seqid, contigLen))
				}
				anomaly.UnknownContigs = append(anomaly.UnknownContigs, seqid)
				continue
			}

			row := GeneRow{
				GeneId:         geneID,
				GeneName:       opts.GeneName.Resolve(rec.Attributes, geneID),
				Biotype:        opts.Biotype.Resolve(rec.Attributes),
				Seqid:          seqid,
				Start:          uint64(rec.Start),
				End:            uint64(rec.End),
				SequenceLength: uint64(rec.End-rec.Start) + 1,
			}
			genes[geneID] = append(genes[geneID], row)

		case opts.TranscriptType.Accepts(rec.FeatureType):
			txID := rec.Attributes["ID"]
			if txID == "" {
				txID = "<missing transcript id>"
			}
			parentAttr, ok := rec.Attributes["Parent"]
			if !ok {
				transcriptParents = append(transcriptParents, parentRef{gene: txID, class: missingParentAttribute})
				anomaly.MissingTranscriptParents = append(anomaly.MissingTranscriptParents, txID)
				if strict {
					return nil, errs.E(op, errs.KindValidation, "transcript feature missing Parent attribute")
				}
				continue
			}

			var parents []string
			for _, p := range strings.Split(parentAttr, ",") {
				p = strings.TrimSpace(p)
				if p != "" {
					parents = append(parents, p)
				}
			}

			switch {
			case len(parents) > 1:
				anomaly.MultipleParentTranscripts = append(anomaly.MultipleParentTranscripts, txID)
				if strict {
					return nil, errs.E(op, errs.KindValidation, fmt.Sprintf("transcript %s has multiple Parent references", txID))
				}
				for _, p := range parents {
					transcriptParents = append(transcriptParents, parentRef{gene: p, class: multipleParents})
				}
			case len(parents) == 1:
				p := parents[0]
				transcriptParents = append(transcriptParents, parentRef{gene: p, class: missingReferencedParent})
				biotype, hasBiotype := resolveTranscriptBiotype(rec.Attributes)
				pending = append(pending, TranscriptRow{
					TranscriptId:   txID,
					ParentGeneId:   p,
					TranscriptType: rec.FeatureType,
					Biotype:        biotype,
					HasBiotype:     hasBiotype,
					Seqid:          seqid,
					Start:          uint64(rec.Start),
					End:            uint64(rec.End),
				})
			}

		case rec.FeatureType == "exon" || rec.FeatureType == "CDS":
			parentAttr, ok := rec.Attributes["Parent"]
			if !ok {
				continue
			}
			for _, txID := range strings.Split(parentAttr, ",") {
				txID = strings.TrimSpace(txID)
				if txID == "" {
					continue
				}
				if rec.FeatureType == "exon" {
					exonCounts[txID]++
					exonSpan[txID] += uint64(rec.End-rec.Start) + 1
				} else {
					hasCds[txID] = true
				}
			}
		}
	}

	deduped := make(map[string]GeneRow)
	keys := make([]string, 0, len(genes))
	for k := range genes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		candidates := genes[key]
		if len(candidates) > 1 {
			anomaly.DuplicateGeneIds = append(anomaly.DuplicateGeneIds, key)
			switch opts.DuplicateGeneId {
			case policy.Fail:
				if strict {
					return nil, errs.E(op, errs.KindPolicy, fmt.Sprintf("duplicate gene_id: %s", key))
				}
			case policy.DedupeKeepLexicographicallySmallest:
				sort.Slice(candidates, func(i, j int) bool {
					a, b := candidates[i], candidates[j]
					if a.Seqid != b.Seqid {
						return a.Seqid < b.Seqid
					}
					if a.Start != b.Start {
						return a.Start < b.Start
					}
					if a.End != b.End {
						return a.End < b.End
					}
					if a.GeneName != b.GeneName {
						return a.GeneName < b.GeneName
					}
					return a.Biotype < b.Biotype
				})
			default:
				if strict {
					return nil, errs.E(op, errs.KindPolicy, "unsupported duplicate gene_id policy variant")
				}
			}
		}
		if len(candidates) > 0 {
			deduped[key] = candidates[0]
		}
	}

	for _, ref := range transcriptParents {
		gene, ok := deduped[ref.gene]
		if !ok {
			anomaly.MissingParents = append(anomaly.MissingParents, ref.gene)
			anomaly.MissingTranscriptParents = append(anomaly.MissingTranscriptParents, ref.gene)
			if strict {
				return nil, errs.E(op, errs.KindValidation, fmt.Sprintf("transcript parent %s does not reference a known gene", ref.gene))
			}
			continue
		}
		gene.TranscriptCount++
		if ref.class == multipleParents {
			anomaly.MissingParents = append(anomaly.MissingParents, "multiple_parent:"+ref.gene)
		}
		deduped[ref.gene] = gene
	}

	filtered := pending[:0]
	for _, tx := range pending {
		tx.ExonCount = exonCounts[tx.TranscriptId]
		tx.TotalExonSpan = exonSpan[tx.TranscriptId]
		tx.CdsPresent = hasCds[tx.TranscriptId]
		if _, ok := deduped[tx.ParentGeneId]; ok {
			filtered = append(filtered, tx)
		}
	}
	pending = filtered

	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.Seqid != b.Seqid {
			return a.Seqid < b.Seqid
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.TranscriptId < b.TranscriptId
	})

	for _, tx := range pending {
		gene, ok := deduped[tx.ParentGeneId]
		if !ok {
			continue
		}
		gene.ExonCount += tx.ExonCount
		gene.TotalExonSpan += tx.TotalExonSpan
		gene.CdsPresent = gene.CdsPresent || tx.CdsPresent
		deduped[tx.ParentGeneId] = gene
	}

	anomaly.finalize()

	geneRows := make([]GeneRow, 0, len(deduped))
	for _, g := range deduped {
		geneRows = append(geneRows, g)
	}
	sort.Slice(geneRows, func(i, j int) bool {
		a, b := geneRows[i], geneRows[j]
		if a.Seqid != b.Seqid {
			return a.Seqid < b.Seqid
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.GeneId < b.GeneId
	})

	biotypeCounts := make(map[string]uint64)
	contigCounts := make(map[string]uint64)
	for _, g := range geneRows {
		biotypeCounts[g.Biotype]++
		contigCounts[g.Seqid]++
	}

	return &Result{
		GeneRows:            geneRows,
		TranscriptRows:      pending,
		Anomaly:             anomaly,
		BiotypeDistribution: sortedDistribution(biotypeCounts),
		ContigDistribution:  sortedDistribution(contigCounts),
	}, nil
}

func resolveTranscriptBiotype(attrs map[string]string) (string, bool) {
	for _, key := range []string{"transcript_biotype", "biotype", "gene_biotype"} {
		if v, ok := attrs[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func sortedDistribution(counts map[string]uint64) []Distribution {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Distribution, 0, len(keys))
	for _, k := range keys {
		out = append(out, Distribution{Key: k, Count: counts[k]})
	}
	return out
}
