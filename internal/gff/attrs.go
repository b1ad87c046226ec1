package gff

import "strings"

// parseAttributes splits a ';'-separated "key=value" attribute field,
// returning the last value seen per key and the keys that occurred more
// than once, in order of their second (and later) occurrence.
func parseAttributes(field string) (map[string]string, []string) {
	attrs := make(map[string]string)
	seen := make(map[string]bool)
	var dupes []string

	for _, part := range strings.Split(field, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasEq := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !hasEq {
			// A bare token with no '=' is recorded present with an empty
			// value, distinguishing it from a wholly absent key.
			value = ""
		} else {
			value = strings.TrimSpace(value)
		}
		if seen[key] {
			dupes = append(dupes, key)
		}
		seen[key] = true
		attrs[key] = value
	}
	return attrs, dupes
}
