package lint

import (
	"fmt"
	"sort"
	"strings"
)

// DiscrepancyKind classifies a consistency finding.
type DiscrepancyKind string

const (
	// UnknownField: an artifact declares a field the source of truth does not.
	UnknownField DiscrepancyKind = "unknown_field"
	// MissingField: a canonical field is absent from an artifact that must
	// carry it.
	MissingField DiscrepancyKind = "missing_field"
	// TypeConflict: two declarations of a field disagree on its type.
	TypeConflict DiscrepancyKind = "type_conflict"
	// ConstraintConflict: two declarations of a field contradict each other on
	// nullability, uniqueness, length bounds, enumerated values, or reference
	// targets.
	ConstraintConflict DiscrepancyKind = "constraint_conflict"
)

// SourceOfTruth is the Left/Right name used when one side of a discrepancy is
// the canonical feature specification rather than a derived artifact.
const SourceOfTruth = "spec"

// Discrepancy is one machine-readable consistency finding.
type Discrepancy struct {
	Kind   DiscrepancyKind `json:"kind" yaml:"kind"`
	Left   string          `json:"left" yaml:"left"`
	Right  string          `json:"right" yaml:"right"`
	Field  string          `json:"field" yaml:"field"`
	Detail string          `json:"detail" yaml:"detail"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s %s/%s field %q: %s", d.Kind, d.Left, d.Right, d.Field, d.Detail)
}

// Report is the full discrepancy collection for one feature run. Validation
// never stops at the first finding; the report holds everything found.
type Report struct {
	FeatureID     string        `json:"feature_id" yaml:"feature_id"`
	Discrepancies []Discrepancy `json:"discrepancies" yaml:"discrepancies"`
}

// Passed reports whether the artifact set is consistent.
func (r *Report) Passed() bool {
	return len(r.Discrepancies) == 0
}

func (r *Report) add(kind DiscrepancyKind, left, right, field, format string, args ...any) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Kind:   kind,
		Left:   left,
		Right:  right,
		Field:  field,
		Detail: fmt.Sprintf(format, args...),
	})
}

// sort orders findings for stable output: by field, then kind, then sides.
func (r *Report) sort() {
	sort.Slice(r.Discrepancies, func(i, j int) bool {
		a, b := r.Discrepancies[i], r.Discrepancies[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return a.Right < b.Right
	})
}

// Summary renders the report as one line per finding.
func (r *Report) Summary() string {
	if r.Passed() {
		return fmt.Sprintf("%s: consistent", r.FeatureID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d discrepancies\n", r.FeatureID, len(r.Discrepancies))
	for _, d := range r.Discrepancies {
		b.WriteString("  ")
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
