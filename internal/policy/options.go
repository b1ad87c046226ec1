package policy

import (
	"fmt"

	"github.com/bijux/atlas-engine/internal/gff"
)

// IngestOptions aggregates every policy knob that shapes extraction
// behavior for a single ingest run.
type IngestOptions struct {
	Strictness      Strictness
	DuplicateGeneId DuplicateGeneIdPolicy
	GeneIdentifier  GeneIdentifierPolicy
	Biotype         BiotypePolicy
	GeneName        GeneNamePolicy
	TranscriptType  TranscriptTypePolicy
	Seqid           gff.SeqidPolicy
	MaxThreads      int
}

// DefaultIngestOptions returns the standard policy bundle used when a
// dataset config does not override any individual policy.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		Strictness:      Compat,
		DuplicateGeneId: Fail,
		GeneIdentifier:  DefaultGeneIdentifierPolicy(),
		Biotype:         DefaultBiotypePolicy(),
		GeneName:        DefaultGeneNamePolicy(),
		TranscriptType:  DefaultTranscriptTypePolicy(),
		Seqid:           gff.SeqidPolicy{},
		MaxThreads:      1,
	}
}

// ParallelismPolicy validates the configured worker count and returns the
// effective parallelism. Extraction is a single-pass, order-sensitive fold
// over one feature table, so no requested thread count ever changes the
// answer: the function exists to reject nonsensical configuration
// (max_threads < 1) while keeping the documented knob honest about what it
// actually does, rather than silently ignoring it.
func ParallelismPolicy(maxThreads int) (int, error) {
	if maxThreads < 1 {
		return 0, fmt.Errorf("policy: max_threads must be >= 1, got %d", maxThreads)
	}
	return 1, nil
}
