package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
	"github.com/bijux/atlas-engine/internal/publish"
)

// LocalFsBackend reads a published dataset tree directly off disk. This is
// the default backend; the cache still mediates every read through it so a
// remote backend is a drop-in replacement.
type LocalFsBackend struct {
	root string
}

// NewLocalFsBackend returns a backend rooted at root, the same directory a
// Publisher writes into.
func NewLocalFsBackend(root string) *LocalFsBackend {
	return &LocalFsBackend{root: root}
}

func (b *LocalFsBackend) paths(dataset ids.DatasetId) publish.ArtifactPaths {
	return publish.ArtifactPaths{Root: b.root, DatasetId: dataset}
}

// FetchCatalog reads catalog.json and compares its content hash to
// ifNoneMatch, mirroring the ETag-via-sha256 convention of the remote
// backend so callers can use the same conditional-fetch code path against
// either.
func (b *LocalFsBackend) FetchCatalog(_ context.Context, ifNoneMatch string) (CatalogFetch, error) {
	const op = errs.Op("store.LocalFsBackend.FetchCatalog")
	path := filepath.Join(b.root, "catalog.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return CatalogFetch{}, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	etag := canonical.SHA256Hex(raw)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return CatalogFetch{NotModified: true, ETag: etag}, nil
	}
	var catalog ids.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return CatalogFetch{}, errs.E(op, errs.KindCorrupted, "parse catalog.json", err)
	}
	return CatalogFetch{ETag: etag, Catalog: &catalog}, nil
}

// FetchManifest reads and parses manifest.json for dataset.
func (b *LocalFsBackend) FetchManifest(_ context.Context, dataset ids.DatasetId) (*artifact.ArtifactManifest, error) {
	const op = errs.Op("store.LocalFsBackend.FetchManifest")
	path := b.paths(dataset).ManifestPath()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	var manifest artifact.ArtifactManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, errs.E(op, errs.KindCorrupted, "parse manifest.json", err)
	}
	return &manifest, nil
}

// FetchSqliteBytes reads one table store file by name (the monolithic
// gene_summary.sqlite, or a named shard file).
func (b *LocalFsBackend) FetchSqliteBytes(_ context.Context, dataset ids.DatasetId, fileName string) ([]byte, error) {
	const op = errs.Op("store.LocalFsBackend.FetchSqliteBytes")
	path := filepath.Join(b.paths(dataset).DerivedDir(), fileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	return raw, nil
}

// FetchFastaBytes reads the published sequence file (compressed or plain).
func (b *LocalFsBackend) FetchFastaBytes(_ context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.LocalFsBackend.FetchFastaBytes")
	path, err := b.resolveInputFile(dataset, false)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	return raw, nil
}

// FetchFaiBytes reads the published length-index file.
func (b *LocalFsBackend) FetchFaiBytes(_ context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.LocalFsBackend.FetchFaiBytes")
	path, err := b.resolveInputFile(dataset, true)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	return raw, nil
}

// FetchReleaseGeneIndexBytes reads release_gene_index.json.
func (b *LocalFsBackend) FetchReleaseGeneIndexBytes(_ context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.LocalFsBackend.FetchReleaseGeneIndexBytes")
	path := b.paths(dataset).ReleaseGeneIndexPath()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindNotFound, fmt.Sprintf("read %s", path), err)
	}
	return raw, nil
}

// resolveInputFile tries the compressed and plain sequence/index names in
// turn, since a publisher may have written either.
func (b *LocalFsBackend) resolveInputFile(dataset ids.DatasetId, fai bool) (string, error) {
	paths := b.paths(dataset)
	for _, compressed := range []bool{true, false} {
		path := paths.SequencePath(compressed)
		if fai {
			path = paths.FaiPath(compressed)
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	path := paths.SequencePath(false)
	if fai {
		path = paths.FaiPath(false)
	}
	return "", errs.E(errs.KindNotFound, fmt.Sprintf("no input file found for %s", path))
}
