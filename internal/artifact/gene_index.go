package artifact

import "github.com/bijux/atlas-engine/internal/canonical"

// GeneIndexEntry maps one gene_id to the shard file that holds it, so a
// point lookup can pick the right shard without opening every one.
type GeneIndexEntry struct {
	GeneId string `json:"gene_id"`
	Shard  string `json:"shard"`
}

// ReleaseGeneIndex is the release_gene_index.json artifact: a flat list of
// gene_id-to-shard mappings, built from the same ShardCatalog a build run
// produces.
type ReleaseGeneIndex struct {
	Entries []GeneIndexEntry `json:"entries"`
}

// MarshalCanonical renders the index as canonical JSON.
func (idx ReleaseGeneIndex) MarshalCanonical() ([]byte, error) {
	return canonical.JSON(idx)
}
