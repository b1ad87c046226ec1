package publish

import "github.com/bijux/atlas-engine/internal/canonical"

// ManifestLock binds the manifest's own byte hash to a hash over the digests
// of the table store files it describes, so a reader can detect a manifest that was
// rewritten without republishing the data it describes (or vice versa).
type ManifestLock struct {
	ManifestSha256 string `json:"manifest_sha256"`
	TableSha256    string `json:"table_sha256"`
}

// MarshalCanonical renders the lock record as canonical JSON.
func (l ManifestLock) MarshalCanonical() ([]byte, error) {
	return canonical.JSON(l)
}
