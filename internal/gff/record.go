// Package gff implements the streaming feature-table parser and seqid
// normalizer of component A (Parser & Normalizer). The parser produces
// FeatureRecords lazily, one per call to Parser.Next, so memory stays
// O(current record + attribute map) regardless of input size.
package gff

// FeatureRecord is one parsed line of the feature table. The raw
// feature_type column is preserved as-is in FeatureType; classification
// happens downstream in internal/extract via
// policy.TranscriptTypePolicy, since which strings count as "transcript"
// is itself policy-driven.
type FeatureRecord struct {
	Seqid       string
	Source      string
	FeatureType string
	Start       int64
	End         int64
	Score       string
	Strand      string
	Phase       string

	// Attributes holds the last value seen for each key. Missing vs empty
	// is distinguished by map membership: an absent key means the
	// attribute was never present; a present key with "" means
	// `key=` appeared.
	Attributes map[string]string

	// DuplicateAttrKeys lists, in order of occurrence, attribute keys that
	// appeared more than once within this record's attribute field.
	DuplicateAttrKeys []string

	// LineNo is the 1-based source line ordinal, used in ParseError and
	// carried through to anomaly reporting.
	LineNo int
}
