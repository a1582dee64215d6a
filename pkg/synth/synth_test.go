package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/llm"
	"ssotgen/pkg/spec"
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

func parseLogin(t *testing.T) *spec.FeatureSpec {
	t.Helper()
	fs, err := spec.Parse([]byte(loginSpec))
	require.NoError(t, err)
	return fs
}

func TestSkeletonAPI(t *testing.T) {
	fs := parseLogin(t)
	a, err := buildSkeleton(fs, artifact.KindAPI)
	require.NoError(t, err)

	item, ok := a.API.Paths["/login"]
	require.True(t, ok)
	require.NotNil(t, item.Post)

	props := requestProperties(item.Post)
	require.NotNil(t, props)
	assert.Contains(t, props, "user_id")
	assert.Contains(t, props, "email")
	// Internal fields stay off the contract.
	assert.NotContains(t, props, "password_hash")
	assert.Equal(t, 20, props["user_id"].MaxLength)
}

func TestSkeletonDBSchema(t *testing.T) {
	fs := parseLogin(t)
	a, err := buildSkeleton(fs, artifact.KindDBSchema)
	require.NoError(t, err)

	require.Len(t, a.DBSchema.Tables, 1)
	table := a.DBSchema.Tables[0]
	assert.Equal(t, "login", table.Name)
	require.Len(t, table.Columns, 3)

	byName := map[string]artifact.Column{}
	for _, c := range table.Columns {
		byName[c.Name] = c
	}
	assert.True(t, byName["user_id"].PrimaryKey)
	assert.Equal(t, "varchar", byName["user_id"].Type)
	assert.Equal(t, 20, byName["user_id"].MaxLength)
	assert.True(t, byName["email"].Unique)
	// Internal fields are stored.
	assert.Contains(t, byName, "password_hash")
}

func TestSkeletonValidationIncludesInternalFields(t *testing.T) {
	fs := parseLogin(t)
	a, err := buildSkeleton(fs, artifact.KindValidation)
	require.NoError(t, err)

	assert.Contains(t, a.Validation.Properties, "password_hash")
	assert.ElementsMatch(t, []string{"user_id", "email", "password_hash"}, a.Validation.Required)
}

func TestSkeletonTimestampRepresentations(t *testing.T) {
	fs, err := spec.Parse([]byte(`
feature_id: audit
fields:
  - name: audit_id
    type: string
  - name: occurred_at
    type: timestamp
  - name: level
    type: enum
    values: [info, warn]
`))
	require.NoError(t, err)

	api, err := buildSkeleton(fs, artifact.KindAPI)
	require.NoError(t, err)
	props := requestProperties(api.API.Paths["/audit"].Post)
	assert.Equal(t, "string", props["occurred_at"].Type)
	assert.Equal(t, "date-time", props["occurred_at"].Format)
	assert.Equal(t, []string{"info", "warn"}, props["level"].Enum)

	db, err := buildSkeleton(fs, artifact.KindDBSchema)
	require.NoError(t, err)
	byName := map[string]artifact.Column{}
	for _, c := range db.DBSchema.Tables[0].Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, "timestamp", byName["occurred_at"].Type)
	assert.Equal(t, []string{"info", "warn"}, byName["level"].Values)
}

func TestSkeletonCarriesPrimaryKeyUniqueness(t *testing.T) {
	fs, err := spec.Parse([]byte(`
feature_id: account
fields:
  - name: username
    type: string
    primary_key: true
`))
	require.NoError(t, err)

	rules, err := buildSkeleton(fs, artifact.KindRules)
	require.NoError(t, err)
	assert.True(t, rules.Rules.Validation["username"].Unique)

	validation, err := buildSkeleton(fs, artifact.KindValidation)
	require.NoError(t, err)
	assert.True(t, validation.Validation.Properties["username"].Unique)
}

func TestSkeletonTestCasesCoverRequiredFields(t *testing.T) {
	fs := parseLogin(t)
	a, err := buildSkeleton(fs, artifact.KindTestCases)
	require.NoError(t, err)

	cases := a.TestCases.TestCases
	// Happy path plus one rejection per required non-internal field.
	require.Len(t, cases, 3)
	assert.Equal(t, "TC-001", cases[0].ID)
	assert.Equal(t, 200, cases[0].Expected.Status)
	assert.NotContains(t, cases[0].Input, "password_hash")

	for _, tc := range cases[1:] {
		assert.Equal(t, 400, tc.Expected.Status)
		assert.Equal(t, "VALIDATION_ERROR", tc.Expected.ErrorCode)
		assert.Len(t, tc.Input, len(cases[0].Input)-1)
	}
}

func TestSkeletonIsDeterministic(t *testing.T) {
	fs := parseLogin(t)
	for _, kind := range artifact.Kinds() {
		first, err := buildSkeleton(fs, kind)
		require.NoError(t, err)
		second, err := buildSkeleton(fs, kind)
		require.NoError(t, err)

		rawA, err := first.Encode()
		require.NoError(t, err)
		rawB, err := second.Encode()
		require.NoError(t, err)
		assert.Equal(t, rawA, rawB, "kind %s", kind)
	}
}

func TestMergeKeepsStructureDropsAll(t *testing.T) {
	fs := parseLogin(t)
	s := New(stubDrafter{text: `
feature_id: login
tables:
  - name: login
    description: Account records.
    columns:
      - name: user_id
        type: text
        description: The account identifier.
      - name: smuggled
        type: varchar
`})

	a, err := s.Synthesize(context.Background(), fs, artifact.KindDBSchema)
	require.NoError(t, err)

	table := a.DBSchema.Tables[0]
	assert.Equal(t, "Account records.", table.Description)

	byName := map[string]artifact.Column{}
	for _, c := range table.Columns {
		byName[c.Name] = c
	}
	// Prose merges; structure does not.
	assert.Equal(t, "The account identifier.", byName["user_id"].Description)
	assert.Equal(t, "varchar", byName["user_id"].Type)
	assert.NotContains(t, byName, "smuggled")
}

func TestMergeAppendsDraftTestCases(t *testing.T) {
	fs := parseLogin(t)
	s := New(stubDrafter{text: `
feature_id: login
testcases:
  - id: X-9
    name: lockout after repeated failures
    input:
      user_id: user_id_1
      email: email_1
    expected:
      status: 423
      error_code: ACCOUNT_LOCKED
`})

	a, err := s.Synthesize(context.Background(), fs, artifact.KindTestCases)
	require.NoError(t, err)

	cases := a.TestCases.TestCases
	require.Len(t, cases, 4)
	last := cases[len(cases)-1]
	assert.Equal(t, "TC-004", last.ID)
	assert.Equal(t, "lockout after repeated failures", last.Name)
	assert.Equal(t, 423, last.Expected.Status)
}

func TestSynthesizeWithoutDrafter(t *testing.T) {
	fs := parseLogin(t)
	set, err := New(nil).SynthesizeAll(context.Background(), fs)
	require.NoError(t, err)
	require.NoError(t, set.Complete())
}

func TestTemplateDrafterEndToEnd(t *testing.T) {
	fs := parseLogin(t)
	set, err := New(TemplateDrafter{}).SynthesizeAll(context.Background(), fs)
	require.NoError(t, err)
	require.NoError(t, set.Complete())

	table := set[artifact.KindDBSchema].DBSchema.Tables[0]
	assert.NotEmpty(t, table.Columns[0].Description)
}

func TestDraftTimeoutClassification(t *testing.T) {
	fs := parseLogin(t)
	s := New(stubDrafter{err: context.DeadlineExceeded})

	_, err := s.Synthesize(context.Background(), fs, artifact.KindAPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDraftTimeout))
}

func TestDraftServiceErrorClassification(t *testing.T) {
	fs := parseLogin(t)

	_, err := New(stubDrafter{err: errors.New("boom")}).
		Synthesize(context.Background(), fs, artifact.KindAPI)
	assert.True(t, errors.Is(err, ErrDraftService))

	// Unparseable draft output is a service failure too.
	_, err = New(stubDrafter{text: ":\n  - ["}).
		Synthesize(context.Background(), fs, artifact.KindAPI)
	assert.True(t, errors.Is(err, ErrDraftService))
}

func TestExtractCodeBlock(t *testing.T) {
	assert.Equal(t, "a: 1", extractCodeBlock("Here you go:\n```yaml\na: 1\n```\nDone."))
	assert.Equal(t, "{}", extractCodeBlock("```json\n{}\n```"))
	assert.Equal(t, "a: 1", extractCodeBlock("a: 1"))
}

func TestLLMDrafterUsesPromptPair(t *testing.T) {
	fs := parseLogin(t)
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "```yaml\nfeature_id: login\n```", PromptTokens: 10, OutputTokens: 5},
	}, nil)

	d := NewLLMDrafter(mock, DraftOptions{})
	text, err := d.Draft(context.Background(), fs, artifact.KindRules)
	require.NoError(t, err)
	assert.Equal(t, "feature_id: login", text)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[1].Content, "feature_id: login")
	assert.Equal(t, float32(llm.TemperatureDrafting), calls[0].Temperature)
	assert.Equal(t, llm.DefaultMaxTokens, calls[0].MaxTokens)
}

func TestLLMDrafterAppliesOptions(t *testing.T) {
	fs := parseLogin(t)
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "feature_id: login"},
	}, nil)

	d := NewLLMDrafter(mock, DraftOptions{Temperature: 0.7, MaxTokens: 1234})
	_, err := d.Draft(context.Background(), fs, artifact.KindRules)
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, float32(0.7), calls[0].Temperature)
	assert.Equal(t, 1234, calls[0].MaxTokens)
}

type stubDrafter struct {
	text string
	err  error
}

func (s stubDrafter) Draft(context.Context, *spec.FeatureSpec, artifact.Kind) (string, error) {
	return s.text, s.err
}
