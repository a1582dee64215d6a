package synth

import (
	"fmt"
	"regexp"
	"strings"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/spec"
)

// Per-kind system prompts for the drafting service. The drafts feed only the
// free-text slots of the deterministic skeletons, but the prompts still ask
// for complete documents so the model has full context to describe.
var systemPrompts = map[artifact.Kind]string{
	artifact.KindAPI: "You are an API designer. Given a feature specification in YAML, " +
		"produce an OpenAPI 3.0 contract for the feature as a single YAML document. " +
		"Expose exactly one POST endpoint named after the feature id. " +
		"Write clear summaries and per-field descriptions. " +
		"Return only the YAML document inside a fenced code block.",
	artifact.KindDBSchema: "You are a database designer. Given a feature specification in YAML, " +
		"produce a relational schema for the feature as a single YAML document with a " +
		"tables list. Use the feature id as the table name and describe every column. " +
		"Return only the YAML document inside a fenced code block.",
	artifact.KindValidation: "You are a validation engineer. Given a feature specification in YAML, " +
		"produce a JSON Schema (draft-07) validating the feature request payload. " +
		"Include a description for every property. " +
		"Return only the JSON document inside a fenced code block.",
	artifact.KindRules: "You are a business analyst. Given a feature specification in YAML, " +
		"produce a rules document as a single YAML document with a validation map " +
		"covering every field and a business_rules list. Phrase each business rule " +
		"as a short testable statement with a description. " +
		"Return only the YAML document inside a fenced code block.",
	artifact.KindTestCases: "You are a QA engineer. Given a feature specification in YAML, " +
		"produce a test case set as a single YAML document with a testcases list. " +
		"Cover the happy path, every missing required field, every constraint " +
		"violation, and every business rule. Give each case an id, a name, an input " +
		"map, an expected block with status and error_code, and a short narrative. " +
		"Return only the YAML document inside a fenced code block.",
}

// userPrompt renders the drafting request for one feature and kind.
func userPrompt(fs *spec.FeatureSpec, kind artifact.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature specification for %q:\n\n", fs.ID)
	b.WriteString(fs.RawYAML)
	if !strings.HasSuffix(fs.RawYAML, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nDraft the %s artifact for this feature.\n", kind)
	return b.String()
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:yaml|yml|json)?\\s*\\n(.*?)```")

// extractCodeBlock pulls the first fenced code block out of a model response.
// Responses without a fence are returned trimmed as-is.
func extractCodeBlock(response string) string {
	if m := codeFenceRE.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}
