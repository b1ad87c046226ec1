package artifact

import (
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/ids"
)

// ShardStrategy names how an artifact's rows are partitioned across files.
type ShardStrategy string

const (
	ShardStrategyPerSeqid   ShardStrategy = "per-seqid"
	ShardStrategyRegionGrid ShardStrategy = "region-grid"
	ShardStrategyNone       ShardStrategy = "none"
)

// ShardEntry is one file within a ShardCatalog.
type ShardEntry struct {
	Name        string   `json:"name"`
	Seqids      []string `json:"seqids"`
	FileName    string   `json:"file_name"`
	ContentHash string   `json:"content_hash"`
}

// ShardCatalog describes how a dataset's rows are split across files. A
// monolithic (unsharded) dataset still produces a ShardCatalog with a
// single synthetic entry named "gene_summary.sqlite", so fan-out callers
// never need to special-case the unsharded form.
type ShardCatalog struct {
	DatasetId ids.DatasetId `json:"dataset_id"`
	Strategy  ShardStrategy `json:"strategy"`
	Shards    []ShardEntry  `json:"shards"`
}

// FileDigest pairs a relative artifact file path with its content hash.
type FileDigest struct {
	Path   string `json:"path"`
	Sha256 string `json:"sha256"`
}

// ArtifactManifest is the schema-versioned record published alongside a
// dataset's table store(s), binding its identity to the exact bytes that
// were published.
type ArtifactManifest struct {
	SchemaVersion    int           `json:"schema_version"`
	DatasetId        ids.DatasetId `json:"dataset_id"`
	Files            []FileDigest  `json:"files"`
	DatasetSignature string        `json:"dataset_signature"`
	GeneCount        int           `json:"gene_count"`
	TranscriptCount  int           `json:"transcript_count"`
	ContigCount      int           `json:"contig_count"`
	Shards           *ShardCatalog `json:"shards,omitempty"`
}

// MarshalCanonical renders the manifest as canonical JSON.
func (m ArtifactManifest) MarshalCanonical() ([]byte, error) {
	return canonical.JSON(m)
}

// Sign computes the dataset_signature: the hash of the concatenation, in
// the manifest's Files order, of each file's digest.
func (m *ArtifactManifest) Sign() {
	digests := make([]string, len(m.Files))
	for i, f := range m.Files {
		digests[i] = f.Sha256
	}
	m.DatasetSignature = canonical.SHA256Concat(digests...)
}
