package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
)

func writeTmp(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPublishRenamesAndAppendsCatalog(t *testing.T) {
	root := t.TempDir()
	datasetID, err := ids.New("110", "homo_sapiens", "GRCh38")
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	paths := ArtifactPaths{Root: root, DatasetId: datasetID}

	if err := os.MkdirAll(paths.DerivedDir(), 0o755); err != nil {
		t.Fatalf("mkdir derived: %v", err)
	}
	if err := os.MkdirAll(paths.InputsDir(), 0o755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}

	tableTmp := paths.GeneSummaryPath() + ".tmp"
	writeTmp(t, tableTmp, "fake-sqlite-bytes")
	indexTmp := paths.ReleaseGeneIndexPath() + ".tmp"
	writeTmp(t, indexTmp, `{"entries":[]}`)

	payload := []StagedFile{
		{TmpPath: tableTmp, FinalPath: paths.GeneSummaryPath()},
		{TmpPath: indexTmp, FinalPath: paths.ReleaseGeneIndexPath()},
	}
	manifest := &artifact.ArtifactManifest{
		SchemaVersion: artifact.SchemaVersion,
		DatasetId:     datasetID,
		GeneCount:     2,
	}

	pub := NewPublisher(root)
	if err := pub.Publish(paths, payload, manifest); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, p := range []string{paths.GeneSummaryPath(), paths.ReleaseGeneIndexPath(), paths.ManifestPath(), paths.ManifestLockPath(), paths.CatalogPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(tableTmp); !os.IsNotExist(err) {
		t.Errorf("expected tmp file %s to be gone after rename", tableTmp)
	}

	catalog, err := ids.LoadCatalog(paths.CatalogPath())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if !catalog.Contains(datasetID) {
		t.Error("expected catalog to contain the published dataset")
	}
}

func TestPublishRefusesDuplicateDatasetId(t *testing.T) {
	root := t.TempDir()
	datasetID, _ := ids.New("110", "homo_sapiens", "GRCh38")
	paths := ArtifactPaths{Root: root, DatasetId: datasetID}
	os.MkdirAll(paths.DerivedDir(), 0o755)
	os.MkdirAll(paths.InputsDir(), 0o755)

	publishOnce := func(content string) error {
		tableTmp := paths.GeneSummaryPath() + ".tmp"
		writeTmp(t, tableTmp, content)
		payload := []StagedFile{{TmpPath: tableTmp, FinalPath: paths.GeneSummaryPath()}}
		manifest := &artifact.ArtifactManifest{SchemaVersion: artifact.SchemaVersion, DatasetId: datasetID}
		return NewPublisher(root).Publish(paths, payload, manifest)
	}

	if err := publishOnce("fake-sqlite-bytes-v1"); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	manifestBefore, err := os.ReadFile(paths.ManifestPath())
	if err != nil {
		t.Fatalf("read manifest after first publish: %v", err)
	}

	// Re-stage and republish the same id with different payload bytes. The
	// catalog already contains the id, so this must be refused before any
	// file on disk is touched — the previously published manifest and
	// table store must survive byte-for-byte.
	republishErr := publishOnce("fake-sqlite-bytes-v2")
	if republishErr == nil {
		t.Fatal("expected second publish of the same DatasetId to be refused")
	}
	if errs.KindOf(republishErr) != errs.KindPolicy {
		t.Errorf("expected a Policy error for a duplicate DatasetId, got %v", republishErr)
	}

	tableBytes, err := os.ReadFile(paths.GeneSummaryPath())
	if err != nil {
		t.Fatalf("read table store after refused republish: %v", err)
	}
	if string(tableBytes) != "fake-sqlite-bytes-v1" {
		t.Errorf("expected published table store to be unchanged, got %q", tableBytes)
	}
	manifestAfter, err := os.ReadFile(paths.ManifestPath())
	if err != nil {
		t.Fatalf("read manifest after refused republish: %v", err)
	}
	if string(manifestAfter) != string(manifestBefore) {
		t.Errorf("expected published manifest.json to be unchanged by a refused republish")
	}
}
