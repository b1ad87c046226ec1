// Package ids defines the identity of a published dataset and the ordered
// catalog of all datasets a cache root knows about.
package ids

import (
	"fmt"
	"strings"

	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
)

// DatasetId is the triple (release, species, assembly) that identifies one
// published dataset. Every component must be a non-empty, printable,
// slash-free token.
type DatasetId struct {
	Release string `json:"release"`
	Species string `json:"species"`
	Assembly string `json:"assembly"`
}

// New validates and constructs a DatasetId.
func New(release, species, assembly string) (DatasetId, error) {
	d := DatasetId{Release: release, Species: species, Assembly: assembly}
	if err := d.Validate(); err != nil {
		return DatasetId{}, err
	}
	return d, nil
}

// Validate reports whether every component is a non-empty, printable,
// slash-free token.
func (d DatasetId) Validate() error {
	for name, v := range map[string]string{
		"release":  d.Release,
		"species":  d.Species,
		"assembly": d.Assembly,
	} {
		if err := validateToken(name, v); err != nil {
			return err
		}
	}
	return nil
}

func validateToken(name, v string) error {
	if v == "" {
		return errs.E(errs.KindValidation, fmt.Sprintf("dataset id %s must be non-empty", name))
	}
	if strings.ContainsRune(v, '/') {
		return errs.E(errs.KindValidation, fmt.Sprintf("dataset id %s must not contain '/'", name))
	}
	for _, r := range v {
		if r < 0x20 || r == 0x7f {
			return errs.E(errs.KindValidation, fmt.Sprintf("dataset id %s must be printable", name))
		}
	}
	return nil
}

// String returns the canonical "{release}/{species}/{assembly}" form.
func (d DatasetId) String() string {
	return d.Release + "/" + d.Species + "/" + d.Assembly
}

// Hash returns the hex SHA-256 digest of the canonical string form.
func (d DatasetId) Hash() string {
	return canonical.SHA256Hex([]byte(d.String()))
}

// Equal reports component-wise equality.
func (d DatasetId) Equal(other DatasetId) bool {
	return d.Release == other.Release && d.Species == other.Species && d.Assembly == other.Assembly
}

// Parse splits a canonical "{release}/{species}/{assembly}" string back
// into a DatasetId.
func Parse(s string) (DatasetId, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return DatasetId{}, errs.E(errs.KindValidation, fmt.Sprintf("dataset id string must have 3 slash-separated parts: %q", s))
	}
	return New(parts[0], parts[1], parts[2])
}
