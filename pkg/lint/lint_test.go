package lint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/spec"
	"ssotgen/pkg/synth"
)

const loginSpec = `
feature_id: login
fields:
  - name: user_id
    type: string
    constraints:
      max_length: 20
  - name: email
    type: string
    constraints:
      unique: true
  - name: password_hash
    type: string
    internal: true
`

func buildSet(t *testing.T, raw string) (*spec.FeatureSpec, artifact.Set) {
	t.Helper()
	fs, err := spec.Parse([]byte(raw))
	require.NoError(t, err)
	set, err := synth.New(nil).SynthesizeAll(context.Background(), fs)
	require.NoError(t, err)
	return fs, set
}

func TestConsistentSetPasses(t *testing.T) {
	fs, set := buildSet(t, loginSpec)
	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	assert.True(t, report.Passed(), report.Summary())
}

func TestTypeConflictAgainstSpec(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	// A drifted schema declares email as an integer column.
	tables := set[artifact.KindDBSchema].DBSchema.Tables
	for i, col := range tables[0].Columns {
		if col.Name == "email" {
			tables[0].Columns[i].Type = "bigint"
		}
	}

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == TypeConflict && d.Field == "email" &&
			d.Left == SourceOfTruth && d.Right == "db_schema" {
			found = true
		}
	}
	assert.True(t, found, report.Summary())
}

func TestMissingFieldInverseCheck(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	doc := set[artifact.KindValidation].Validation
	delete(doc.Properties, "password_hash")
	var required []string
	for _, name := range doc.Required {
		if name != "password_hash" {
			required = append(required, name)
		}
	}
	doc.Required = required

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == MissingField && d.Field == "password_hash" && d.Right == "validation" {
			found = true
		}
	}
	assert.True(t, found, report.Summary())
}

func TestInternalFieldMayBeAbsentFromAPI(t *testing.T) {
	fs, set := buildSet(t, loginSpec)
	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)

	for _, d := range report.Discrepancies {
		assert.NotEqual(t, "password_hash", d.Field)
	}
}

func TestUnknownFieldFlagged(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	doc := set[artifact.KindRules].Rules
	doc.Validation["last_seen"] = artifact.FieldRule{Type: "timestamp"}

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())
	assert.Equal(t, UnknownField, report.Discrepancies[0].Kind)
	assert.Equal(t, "last_seen", report.Discrepancies[0].Field)
}

func TestConstraintConflicts(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	tables := set[artifact.KindDBSchema].DBSchema.Tables
	for i, col := range tables[0].Columns {
		switch col.Name {
		case "user_id":
			tables[0].Columns[i].MaxLength = 64
		case "email":
			tables[0].Columns[i].Unique = false
		}
	}

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)

	kinds := map[string]DiscrepancyKind{}
	for _, d := range report.Discrepancies {
		kinds[d.Field] = d.Kind
	}
	assert.Equal(t, ConstraintConflict, kinds["user_id"])
	assert.Equal(t, ConstraintConflict, kinds["email"])
}

func TestExplicitPrimaryKeySetPasses(t *testing.T) {
	raw := `
feature_id: account
fields:
  - name: username
    type: string
    primary_key: true
  - name: email
    type: string
    constraints:
      unique: true
`
	fs, set := buildSet(t, raw)

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	// The rules and validation artifacts must carry the uniqueness a primary
	// key implies, or the synthesizer fails its own gate.
	assert.True(t, report.Passed(), report.Summary())
}

func TestDroppedUniquenessInValidationSchema(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	set[artifact.KindValidation].Validation.Properties["email"].Unique = false

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == ConstraintConflict && d.Field == "email" && d.Right == "validation" {
			found = true
		}
	}
	assert.True(t, found, report.Summary())
}

func TestNullabilityContradiction(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	doc := set[artifact.KindValidation].Validation
	var required []string
	for _, name := range doc.Required {
		if name != "email" {
			required = append(required, name)
		}
	}
	doc.Required = required

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == ConstraintConflict && d.Field == "email" && d.Right == "validation" {
			found = true
		}
	}
	assert.True(t, found, report.Summary())
}

func TestAllDiscrepanciesCollected(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	tables := set[artifact.KindDBSchema].DBSchema.Tables
	tables[0].Columns[0].Type = "boolean"
	doc := set[artifact.KindRules].Rules
	doc.Validation["ghost"] = artifact.FieldRule{Type: "string"}
	delete(set[artifact.KindValidation].Validation.Properties, "email")

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	// One pass reports everything, never just the first finding.
	assert.GreaterOrEqual(t, len(report.Discrepancies), 3)
}

func TestReferenceResolution(t *testing.T) {
	raw := `
feature_id: order
fields:
  - name: order_id
    type: string
  - name: customer
    type: reference
    references: customer_profile
`
	fs, set := buildSet(t, raw)

	report, err := New(map[string]bool{"customer_profile": true}).Validate(fs, set)
	require.NoError(t, err)
	assert.True(t, report.Passed(), report.Summary())

	report, err = New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())
	assert.Contains(t, report.Discrepancies[0].Detail, "customer_profile")
}

func TestPairwiseTypeConflict(t *testing.T) {
	fs, set := buildSet(t, loginSpec)

	// Push the same field in opposite directions in two artifacts; the pair
	// itself must also be reported.
	set[artifact.KindRules].Rules.Validation["user_id"] = artifact.FieldRule{
		Type: "integer", Required: true,
	}

	report, err := New(nil).Validate(fs, set)
	require.NoError(t, err)
	require.False(t, report.Passed())

	pairwise := false
	for _, d := range report.Discrepancies {
		if d.Kind == TypeConflict && d.Left != SourceOfTruth && d.Right != SourceOfTruth {
			pairwise = true
		}
	}
	assert.True(t, pairwise, report.Summary())
}

func TestIncompleteSetRejected(t *testing.T) {
	fs, set := buildSet(t, loginSpec)
	delete(set, artifact.KindRules)

	_, err := New(nil).Validate(fs, set)
	require.Error(t, err)
}
