package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/index"
	"ssotgen/pkg/lint"
	"ssotgen/pkg/spec"
	"ssotgen/pkg/store"
	"ssotgen/pkg/synth"
)

const loginSpec = `
feature_id: login
title: User login
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
business_rules:
  max_fail_count: 5
`

func testPipeline(t *testing.T) (*Pipeline, *store.Store, *index.Index) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "features"))
	require.NoError(t, err)
	idx, err := index.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return New(synth.New(synth.TemplateDrafter{}), st, idx, nil), st, idx
}

func TestRunStoresAndIndexes(t *testing.T) {
	p, st, idx := testPipeline(t)
	ctx := context.Background()

	result, err := p.Run(ctx, []byte(loginSpec))
	require.NoError(t, err)
	assert.True(t, result.Stored)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "login", result.FeatureID)
	assert.True(t, result.Report.Passed())

	assert.Empty(t, st.MissingSlots("login"))
	entry, err := idx.Lookup(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, result.Locations, entry.Locations)
}

func TestRerunIsByteIdentical(t *testing.T) {
	p, st, _ := testPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, []byte(loginSpec))
	require.NoError(t, err)

	first := map[artifact.Kind][]byte{}
	for _, kind := range artifact.Kinds() {
		raw, err := os.ReadFile(filepath.Join(st.Dir("login"), kind.Filename()))
		require.NoError(t, err)
		first[kind] = raw
	}

	_, err = p.Run(ctx, []byte(loginSpec))
	require.NoError(t, err)

	for _, kind := range artifact.Kinds() {
		raw, err := os.ReadFile(filepath.Join(st.Dir("login"), kind.Filename()))
		require.NoError(t, err)
		assert.Equal(t, first[kind], raw, "kind %s", kind)
	}
}

func TestRunMalformedSpec(t *testing.T) {
	p, _, _ := testPipeline(t)

	_, err := p.Run(context.Background(), []byte("fields: []\n"))
	require.Error(t, err)

	var malformed *spec.MalformedSpecError
	require.ErrorAs(t, err, &malformed)
}

func TestRunBlockedByUnresolvedReference(t *testing.T) {
	p, st, idx := testPipeline(t)
	raw := []byte(`
feature_id: order
fields:
  - name: order_id
    type: string
  - name: customer
    type: reference
    references: customer_profile
`)

	result, err := p.Run(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, result.Stored)
	require.False(t, result.Report.Passed())

	// Blocked runs leave store and index untouched.
	assert.Len(t, st.MissingSlots("order"), 5)
	_, err = idx.Lookup(context.Background(), "order")
	require.Error(t, err)

	// Once the referenced feature is registered, the same run passes.
	require.NoError(t, idx.Update(context.Background(), "customer_profile",
		storedLocations(st, "customer_profile")))
	result, err = p.Run(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, result.Stored)
}

func TestRunCanceledBeforeCommit(t *testing.T) {
	p, st, _ := testPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []byte(loginSpec))
	require.Error(t, err)
	assert.Len(t, st.MissingSlots("login"), 5)
}

func TestRunAllConcurrent(t *testing.T) {
	p, _, idx := testPipeline(t)

	specs := map[string][]byte{
		"login.yaml": []byte(loginSpec),
		"audit.yaml": []byte(`
feature_id: audit
fields:
  - name: audit_id
    type: string
  - name: occurred_at
    type: timestamp
`),
		"broken.yaml": []byte("feature_id: Bad-ID\n"),
	}

	outcomes := p.RunAll(context.Background(), specs)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "audit.yaml", outcomes[0].Source)
	assert.Equal(t, "broken.yaml", outcomes[1].Source)
	assert.Equal(t, "login.yaml", outcomes[2].Source)

	assert.True(t, outcomes[0].Result.Stored)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, outcomes[2].Result.Stored)

	known, err := idx.KnownFeatures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"login": true, "audit": true}, known)
}

func TestValidateStoredDetectsDrift(t *testing.T) {
	p, st, _ := testPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, []byte(loginSpec))
	require.NoError(t, err)

	report, err := p.ValidateStored(ctx, []byte(loginSpec))
	require.NoError(t, err)
	assert.True(t, report.Passed())

	// Simulate drift: rewrite the stored schema with email as an integer
	// column.
	path := filepath.Join(st.Dir("login"), artifact.KindDBSchema.Filename())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	drifted, err := artifact.Decode(artifact.KindDBSchema, "login", raw)
	require.NoError(t, err)
	for i, col := range drifted.DBSchema.Tables[0].Columns {
		if col.Name == "email" {
			drifted.DBSchema.Tables[0].Columns[i].Type = "bigint"
		}
	}
	raw, err = drifted.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	report, err = p.ValidateStored(ctx, []byte(loginSpec))
	require.NoError(t, err)
	require.False(t, report.Passed())

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == lint.TypeConflict && d.Field == "email" {
			found = true
		}
	}
	assert.True(t, found, report.Summary())
}

func TestValidateStoredMissingFiles(t *testing.T) {
	p, st, _ := testPipeline(t)
	ctx := context.Background()

	_, err := p.ValidateStored(ctx, []byte(loginSpec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing artifact files")

	_, err = p.Run(ctx, []byte(loginSpec))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(st.Dir("login"), artifact.KindRules.Filename())))

	_, err = p.ValidateStored(ctx, []byte(loginSpec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), artifact.KindRules.Filename())
}

func storedLocations(st *store.Store, featureID string) store.Locations {
	locations := make(store.Locations)
	for _, kind := range artifact.Kinds() {
		locations[kind] = filepath.Join(st.Dir(featureID), kind.Filename())
	}
	return locations
}
