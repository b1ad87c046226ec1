// Package policy defines the closed set of tagged-variant configuration
// enums that drive ingest/extraction behavior (spec.md §4.2). Each enum is
// a small Go type with enumerated effects, never a free-form string
// accepted at runtime — invalid configuration is rejected at
// construction/decode time, not deep inside the extraction loop.
package policy

import "fmt"

// Strictness controls how aggressively anomalies are upgraded from
// reports to hard ExtractErrors.
type Strictness uint8

const (
	// Strict converts every recognized anomaly into an error and stops.
	Strict Strictness = iota
	// Compat tolerates the common cross-tool anomalies but still reports them.
	Compat
	// Lenient accumulates anomalies and keeps going whenever possible.
	Lenient
	// ReportOnly never aborts; every anomaly is recorded for the QC report.
	ReportOnly
)

func (s Strictness) String() string {
	switch s {
	case Strict:
		return "Strict"
	case Compat:
		return "Compat"
	case Lenient:
		return "Lenient"
	case ReportOnly:
		return "ReportOnly"
	default:
		return fmt.Sprintf("Strictness(%d)", uint8(s))
	}
}

// IsStrict reports whether anomalies must abort ingest.
func (s Strictness) IsStrict() bool {
	return s == Strict
}

// ParseStrictness validates a configuration token against the closed set.
func ParseStrictness(s string) (Strictness, error) {
	switch s {
	case "strict":
		return Strict, nil
	case "compat":
		return Compat, nil
	case "lenient":
		return Lenient, nil
	case "report_only":
		return ReportOnly, nil
	default:
		return 0, fmt.Errorf("policy: unknown strictness mode %q", s)
	}
}
