package policy

// TranscriptTypePolicy is the set of feature_type strings accepted as
// transcript-like features (mRNA, transcript, ncRNA, ...).
type TranscriptTypePolicy struct {
	accepted map[string]bool
}

// NewTranscriptTypePolicy builds a policy from the given accepted types.
func NewTranscriptTypePolicy(types ...string) TranscriptTypePolicy {
	accepted := make(map[string]bool, len(types))
	for _, t := range types {
		accepted[t] = true
	}
	return TranscriptTypePolicy{accepted: accepted}
}

// DefaultTranscriptTypePolicy returns the common GFF3/GTF transcript-like
// feature_type set.
func DefaultTranscriptTypePolicy() TranscriptTypePolicy {
	return NewTranscriptTypePolicy(
		"transcript", "mRNA", "ncRNA", "rRNA", "tRNA", "snRNA", "snoRNA",
		"lnc_RNA", "miRNA", "pseudogenic_transcript",
	)
}

// Accepts reports whether featureType counts as transcript-like.
func (p TranscriptTypePolicy) Accepts(featureType string) bool {
	return p.accepted[featureType]
}
