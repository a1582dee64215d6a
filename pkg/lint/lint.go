// Package lint is the consistency gate between the canonical feature
// specification and its derived artifacts. It compares field tables, collects
// every discrepancy it can find, and passes only an empty report.
package lint

import (
	"fmt"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/logx"
	"ssotgen/pkg/spec"
)

// Validator checks artifact sets against their feature specification.
type Validator struct {
	// knownFeatures is the set of feature identifiers reference fields may
	// target, sourced from the feature index.
	knownFeatures map[string]bool
	logger        *logx.Logger
}

// New creates a validator. knownFeatures may be nil when no references are
// expected to resolve.
func New(knownFeatures map[string]bool) *Validator {
	return &Validator{
		knownFeatures: knownFeatures,
		logger:        logx.NewLogger("lint"),
	}
}

// mustCarryAll lists the kinds required to carry every canonical field. The
// API contract is exempt for internal fields, and test case inputs are
// presence-checked only.
//
//nolint:gochecknoglobals // Fixed policy table.
var mustCarryAll = map[artifact.Kind]bool{
	artifact.KindDBSchema:   true,
	artifact.KindValidation: true,
}

// Validate runs the full consistency check for one feature. The returned
// report holds every discrepancy found; the error is reserved for artifacts
// that cannot be examined at all.
func (v *Validator) Validate(fs *spec.FeatureSpec, set artifact.Set) (*Report, error) {
	if err := set.Complete(); err != nil {
		return nil, fmt.Errorf("artifact set for %s is incomplete: %w", fs.ID, err)
	}

	report := &Report{FeatureID: fs.ID}

	tables := make(map[artifact.Kind]artifact.FieldTable, len(set))
	for kind, a := range set {
		table, err := artifact.Extract(a)
		if err != nil {
			return nil, fmt.Errorf("extracting %s for %s: %w", kind, fs.ID, err)
		}
		tables[kind] = table
	}

	for _, kind := range artifact.Kinds() {
		v.checkAgainstSpec(report, fs, kind, tables[kind])
	}
	v.checkReferences(report, fs)
	v.checkPairwise(report, tables)

	report.sort()
	if !report.Passed() {
		v.logger.Info("%s: %d discrepancies", fs.ID, len(report.Discrepancies))
	}
	return report, nil
}

// checkAgainstSpec compares one artifact's field table with the canonical
// field set: unknown fields, type conflicts, constraint contradictions, and
// the inverse missing-field check.
func (v *Validator) checkAgainstSpec(report *Report, fs *spec.FeatureSpec, kind artifact.Kind, table artifact.FieldTable) {
	name := string(kind)

	for fieldName, info := range table {
		f := fs.Field(fieldName)
		if f == nil {
			report.add(UnknownField, name, SourceOfTruth, fieldName,
				"field is not in the source of truth")
			continue
		}
		if info.Type != "" && infoClass(info) != semanticClass(f.Type) {
			report.add(TypeConflict, SourceOfTruth, name, fieldName,
				"%s vs %s", f.Type, info.Type)
		}
		v.checkConstraints(report, f, name, info)
	}

	for i := range fs.Fields {
		f := &fs.Fields[i]
		if _, ok := table[f.Name]; ok {
			continue
		}
		switch {
		case mustCarryAll[kind]:
			report.add(MissingField, SourceOfTruth, name, f.Name,
				"canonical field is absent")
		case kind == artifact.KindAPI && !f.Internal:
			report.add(MissingField, SourceOfTruth, name, f.Name,
				"non-internal field is absent from the contract")
		}
	}
}

// checkConstraints flags contradictions between a canonical field and one
// artifact declaration. Aspects the artifact does not encode are skipped.
func (v *Validator) checkConstraints(report *Report, f *spec.FieldSpec, name string, info artifact.FieldInfo) {
	if info.Required != nil && *info.Required != !f.Nullable {
		report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
			"nullable=%t vs required=%t", f.Nullable, *info.Required)
	}

	// Primary key columns enforce uniqueness structurally; that is not a
	// contradiction of an unmarked spec field.
	specUnique := f.Constraints.Unique || f.PrimaryKey
	if info.Unique != nil && !info.PrimaryKey && *info.Unique != specUnique {
		report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
			"unique=%t vs unique=%t", specUnique, *info.Unique)
	}

	if info.MaxLength > 0 && f.Constraints.MaxLength > 0 && info.MaxLength != f.Constraints.MaxLength {
		report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
			"max_length=%d vs max_length=%d", f.Constraints.MaxLength, info.MaxLength)
	}

	if len(info.Enum) > 0 {
		switch {
		case f.Type != spec.TypeEnum:
			report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
				"enumerated values on a %s field", f.Type)
		case !sameEnum(f.EnumValues, info.Enum):
			report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
				"enumerated values %v vs %v", f.EnumValues, info.Enum)
		}
	}

	if info.References != "" && info.References != f.References {
		report.add(ConstraintConflict, SourceOfTruth, name, f.Name,
			"references %q vs %q", f.References, info.References)
	}
}

// checkReferences verifies every reference field targets a known feature.
func (v *Validator) checkReferences(report *Report, fs *spec.FeatureSpec) {
	for i := range fs.Fields {
		f := &fs.Fields[i]
		if f.Type != spec.TypeReference {
			continue
		}
		if !v.knownFeatures[f.References] {
			report.add(ConstraintConflict, SourceOfTruth, SourceOfTruth, f.Name,
				"references unknown feature %q", f.References)
		}
	}
}

// checkPairwise compares type declarations between every artifact pair.
func (v *Validator) checkPairwise(report *Report, tables map[artifact.Kind]artifact.FieldTable) {
	kinds := artifact.Kinds()
	for i := 0; i < len(kinds); i++ {
		for j := i + 1; j < len(kinds); j++ {
			left, right := tables[kinds[i]], tables[kinds[j]]
			for fieldName, a := range left {
				b, ok := right[fieldName]
				if !ok || a.Type == "" || b.Type == "" {
					continue
				}
				if infoClass(a) != infoClass(b) {
					report.add(TypeConflict, string(kinds[i]), string(kinds[j]), fieldName,
						"%s vs %s", a.Type, b.Type)
				}
			}
		}
	}
}
