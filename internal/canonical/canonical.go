// Package canonical provides the byte-stable JSON encoding and hashing
// primitives shared by the manifest, catalog, and cursor formats. Every
// artifact that must be byte-equal across machines goes through this
// package instead of encoding/json directly.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// JSON re-encodes v as canonical JSON: object keys sorted recursively,
// 2-space indent, LF line endings, single trailing newline. Callers pass
// any JSON-marshalable value; maps and structs are both normalized.
func JSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonical: unmarshal for normalization: %w", err)
	}
	normalized := normalize(generic)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("canonical: encode: %w", err)
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out, nil
}

// normalize walks a decoded JSON value (map[string]interface{}, []interface{},
// or scalar) and returns an equivalent value whose object keys will encode
// in sorted order. encoding/json already sorts map[string]interface{} keys
// on Marshal, so normalize's job is to recurse consistently; it is kept
// explicit (rather than relying solely on the encoder) so the sort order is
// documented and testable independent of encoding/json's internals.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(val))
		for _, k := range keys {
			out[k] = normalize(val[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return val
	}
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256File returns the lowercase hex SHA-256 digest of the raw bytes of
// the file at path, streaming rather than loading the whole file.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("canonical: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("canonical: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Concat hashes the concatenation, in the given order, of a set of
// already-computed hex digests. It is used to compute a single signature
// over several per-file digests without re-reading the files.
func SHA256Concat(hexDigests ...string) string {
	h := sha256.New()
	for _, d := range hexDigests {
		io.WriteString(h, d)
	}
	return hex.EncodeToString(h.Sum(nil))
}
