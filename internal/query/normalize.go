package query

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeNameLookup applies the same NFKC-fold-then-lowercase transform
// the artifact builder uses for name_normalized, so a name/name_prefix
// filter value collides with the indexed column regardless of Unicode
// form. Grounded on
// bijux-atlas-query/src/tests_support/query_tests_advanced_and_sharding.rs's
// unicode_normalization_policy_nfkc_is_stable test.
func normalizeNameLookup(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
