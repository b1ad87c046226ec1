package ids

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
)

// Catalog is the ordered, append-only list of published DatasetIds living
// at <root>/catalog.json. Publish order is preserved; a DatasetId already
// present is never overwritten.
type Catalog struct {
	Datasets []DatasetId `json:"datasets"`
}

// Contains reports whether id is already present.
func (c *Catalog) Contains(id DatasetId) bool {
	for _, existing := range c.Datasets {
		if existing.Equal(id) {
			return true
		}
	}
	return false
}

// Append adds id to the end of the catalog, refusing to overwrite an
// existing entry with the same DatasetId.
func (c *Catalog) Append(id DatasetId) error {
	if c.Contains(id) {
		return errs.E(errs.KindPolicy, fmt.Sprintf("dataset already published: %s", id))
	}
	c.Datasets = append(c.Datasets, id)
	return nil
}

// MarshalCanonical renders the catalog as canonical JSON.
func (c *Catalog) MarshalCanonical() ([]byte, error) {
	return canonical.JSON(c)
}

// LoadCatalog reads and parses catalog.json at path. A missing file yields
// an empty Catalog rather than an error, since an empty cache root has not
// published anything yet.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Catalog{}, nil
	}
	if err != nil {
		return nil, errs.E(errs.KindInternal, fmt.Sprintf("read catalog %s", path), err)
	}
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errs.E(errs.KindInternal, fmt.Sprintf("parse catalog %s", path), err)
	}
	return &c, nil
}

// SaveCatalog writes the catalog to path as canonical JSON.
func SaveCatalog(path string, c *Catalog) error {
	raw, err := c.MarshalCanonical()
	if err != nil {
		return errs.Wrap("ids.SaveCatalog", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errs.E(errs.KindInternal, fmt.Sprintf("write catalog %s", path), err)
	}
	return nil
}
