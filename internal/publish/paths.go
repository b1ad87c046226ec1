// Package publish implements the Publisher: it stages a built artifact's
// payload files under `.tmp` names, binds them to a signed manifest, and
// renames everything into place in the fixed order that keeps the manifest
// the last file to become visible.
package publish

import (
	"path/filepath"

	"github.com/bijux/atlas-engine/internal/ids"
)

// ArtifactPaths computes the on-disk layout for one dataset under a cache
// root, matching spec.md §6's directory layout exactly.
type ArtifactPaths struct {
	Root      string
	DatasetId ids.DatasetId
}

// DatasetDir is "<root>/<release>/<species>/<assembly>".
func (p ArtifactPaths) DatasetDir() string {
	return filepath.Join(p.Root, p.DatasetId.Release, p.DatasetId.Species, p.DatasetId.Assembly)
}

// InputsDir holds copies of the sequence file and its length index.
func (p ArtifactPaths) InputsDir() string {
	return filepath.Join(p.DatasetDir(), "inputs")
}

// DerivedDir holds the table store(s), release gene index, and manifest.
func (p ArtifactPaths) DerivedDir() string {
	return filepath.Join(p.DatasetDir(), "derived")
}

// SequencePath is the published sequence file path (possibly .bgz).
func (p ArtifactPaths) SequencePath(compressed bool) string {
	name := "genome.fa"
	if compressed {
		name += ".bgz"
	}
	return filepath.Join(p.InputsDir(), name)
}

// FaiPath is the published length-index path, matching the sequence's
// compression suffix.
func (p ArtifactPaths) FaiPath(compressed bool) string {
	return p.SequencePath(compressed) + ".fai"
}

// GeneSummaryPath is the monolithic (unsharded) table store path.
func (p ArtifactPaths) GeneSummaryPath() string {
	return filepath.Join(p.DerivedDir(), "gene_summary.sqlite")
}

// ReleaseGeneIndexPath is the release_gene_index.json path.
func (p ArtifactPaths) ReleaseGeneIndexPath() string {
	return filepath.Join(p.DerivedDir(), "release_gene_index.json")
}

// ManifestPath is the manifest.json path.
func (p ArtifactPaths) ManifestPath() string {
	return filepath.Join(p.DerivedDir(), "manifest.json")
}

// ManifestLockPath is the manifest.lock path.
func (p ArtifactPaths) ManifestLockPath() string {
	return filepath.Join(p.DerivedDir(), "manifest.lock")
}

// CatalogPath is the root-level catalog.json path, shared by every dataset
// under this root.
func (p ArtifactPaths) CatalogPath() string {
	return filepath.Join(p.Root, "catalog.json")
}
