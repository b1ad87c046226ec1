package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
)

// StagedFile is one payload file the caller has already written to a
// `.tmp` path, awaiting the publisher's rename-into-place step.
type StagedFile struct {
	TmpPath   string
	FinalPath string
}

// Publisher stages a dataset's payload files and manifest, then makes them
// visible in the fixed order spec.md §4.4 describes: manifest.lock is
// written in place first, the payload files are renamed into place (each
// atomically), and manifest.json is renamed last.
type Publisher struct {
	Root string
}

// NewPublisher returns a Publisher rooted at root.
func NewPublisher(root string) *Publisher {
	return &Publisher{Root: root}
}

// Publish binds payload to manifest (computing per-file digests and the
// overall dataset_signature), writes manifest.lock, renames every `.tmp`
// file into place, and appends the dataset to the top-level catalog.
//
// payload must include every file the manifest should describe except the
// manifest itself; at least one entry's FinalPath must end in ".sqlite" so
// a table-bytes hash can be computed for the lock record.
func (pub *Publisher) Publish(paths ArtifactPaths, payload []StagedFile, manifest *artifact.ArtifactManifest) error {
	const op = errs.Op("publish.Publish")

	catalogPath := filepath.Join(pub.Root, "catalog.json")
	catalog, err := ids.LoadCatalog(catalogPath)
	if err != nil {
		return errs.Wrap(op, err)
	}
	if catalog.Contains(paths.DatasetId) {
		return errs.E(op, errs.KindPolicy, fmt.Sprintf("dataset already published: %s", paths.DatasetId))
	}

	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		return errs.E(op, errs.KindInternal, fmt.Sprintf("mkdir %s", paths.DerivedDir()), err)
	}
	if err := os.MkdirAll(paths.InputsDir(), 0o755); err != nil {
		return errs.E(op, errs.KindInternal, fmt.Sprintf("mkdir %s", paths.InputsDir()), err)
	}

	ordered := append([]StagedFile(nil), payload...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].FinalPath < ordered[j].FinalPath })

	var tableDigests []string
	manifest.Files = manifest.Files[:0]
	for _, f := range ordered {
		digest, err := canonical.SHA256File(f.TmpPath)
		if err != nil {
			return errs.E(op, errs.KindInternal, fmt.Sprintf("digest %s", f.TmpPath), err)
		}
		rel, err := filepath.Rel(paths.DatasetDir(), f.FinalPath)
		if err != nil {
			rel = f.FinalPath
		}
		manifest.Files = append(manifest.Files, artifact.FileDigest{Path: rel, Sha256: digest})
		if strings.HasSuffix(f.FinalPath, ".sqlite") {
			tableDigests = append(tableDigests, digest)
		}
	}
	if len(tableDigests) == 0 {
		return errs.E(op, errs.KindInternal, "publish payload contains no table store file")
	}
	manifest.Sign()

	manifestBytes, err := manifest.MarshalCanonical()
	if err != nil {
		return errs.E(op, errs.KindInternal, "marshal manifest", err)
	}
	manifestTmp := paths.ManifestPath() + ".tmp"
	if err := os.WriteFile(manifestTmp, manifestBytes, 0o644); err != nil {
		return errs.E(op, errs.KindInternal, fmt.Sprintf("write %s", manifestTmp), err)
	}
	manifestHash := canonical.SHA256Hex(manifestBytes)
	tableHash := canonical.SHA256Concat(tableDigests...)

	lock := ManifestLock{ManifestSha256: manifestHash, TableSha256: tableHash}
	lockBytes, err := lock.MarshalCanonical()
	if err != nil {
		return errs.E(op, errs.KindInternal, "marshal manifest.lock", err)
	}
	if err := os.WriteFile(paths.ManifestLockPath(), lockBytes, 0o644); err != nil {
		return errs.E(op, errs.KindInternal, fmt.Sprintf("write %s", paths.ManifestLockPath()), err)
	}

	for _, f := range ordered {
		if err := os.Rename(f.TmpPath, f.FinalPath); err != nil {
			return errs.E(op, errs.KindInternal, fmt.Sprintf("rename %s -> %s", f.TmpPath, f.FinalPath), err)
		}
	}
	if err := os.Rename(manifestTmp, paths.ManifestPath()); err != nil {
		return errs.E(op, errs.KindInternal, fmt.Sprintf("rename %s -> %s", manifestTmp, paths.ManifestPath()), err)
	}

	if err := catalog.Append(paths.DatasetId); err != nil {
		return errs.Wrap(op, err)
	}
	if err := ids.SaveCatalog(catalogPath, catalog); err != nil {
		return errs.Wrap(op, err)
	}
	return nil
}
