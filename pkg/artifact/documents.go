package artifact

// SchemaObject is a JSON-Schema-shaped type description, shared by the API
// contract (request body schemas) and the validation schema artifact.
//
//nolint:govet // Logical grouping preferred over field alignment.
type SchemaObject struct {
	Type        string                   `yaml:"type,omitempty" json:"type,omitempty"`
	Format      string                   `yaml:"format,omitempty" json:"format,omitempty"`
	MaxLength   int                      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	MinLength   int                      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	Minimum     *int64                   `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *int64                   `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	Pattern     string                   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	// Unique is an extension keyword carried by the validation schema so
	// uniqueness constraints survive the round trip through JSON Schema.
	Unique      bool                     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Enum        []string                 `yaml:"enum,omitempty" json:"enum,omitempty"`
	Properties  map[string]*SchemaObject `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required    []string                 `yaml:"required,omitempty" json:"required,omitempty"`
	Description string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Example     string                   `yaml:"example,omitempty" json:"example,omitempty"`
}

// APIDoc is the API contract artifact: a minimal OpenAPI 3 document covering
// the feature's operation and its request/response schemas.
type APIDoc struct {
	OpenAPI string              `yaml:"openapi"`
	Info    APIInfo             `yaml:"info"`
	Paths   map[string]PathItem `yaml:"paths"`
}

// APIInfo holds the OpenAPI info block.
type APIInfo struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

// PathItem holds the operations available on one path.
type PathItem struct {
	Post *Operation `yaml:"post,omitempty"`
}

// Operation describes one API operation.
type Operation struct {
	Summary     string              `yaml:"summary,omitempty"`
	Description string              `yaml:"description,omitempty"`
	RequestBody *RequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]Response `yaml:"responses,omitempty"`
}

// RequestBody describes an operation request body.
type RequestBody struct {
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

// MediaType wraps a schema for one content type.
type MediaType struct {
	Schema *SchemaObject `yaml:"schema,omitempty"`
}

// Response describes one response status.
type Response struct {
	Description string `yaml:"description"`
}

// DBSchemaDoc is the logical database schema artifact.
type DBSchemaDoc struct {
	FeatureID string  `yaml:"feature_id"`
	Tables    []Table `yaml:"tables"`
}

// Table is one logical table.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Columns     []Column `yaml:"columns"`
}

// Column is one table column with its constraints.
//
//nolint:govet // Logical grouping preferred over field alignment.
type Column struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Nullable    bool     `yaml:"nullable"`
	PrimaryKey  bool     `yaml:"primary_key,omitempty"`
	Unique      bool     `yaml:"unique,omitempty"`
	MaxLength   int      `yaml:"max_length,omitempty"`
	Values      []string `yaml:"values,omitempty"`
	References  string   `yaml:"references,omitempty"`
	Default     *string  `yaml:"default,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// ValidationDoc is the validation schema artifact: a JSON Schema document for
// request body validation.
//
//nolint:govet // Logical grouping preferred over field alignment.
type ValidationDoc struct {
	Schema               string                   `json:"$schema,omitempty" yaml:"$schema,omitempty"`
	Title                string                   `json:"title,omitempty" yaml:"title,omitempty"`
	Type                 string                   `json:"type" yaml:"type"`
	Properties           map[string]*SchemaObject `json:"properties" yaml:"properties"`
	Required             []string                 `json:"required,omitempty" yaml:"required,omitempty"`
	AdditionalProperties bool                     `json:"additionalProperties" yaml:"additionalProperties"`
}

// RulesDoc is the rules artifact: per-field validation rules plus high-level
// business rules derived from the specification's behavioral notes.
type RulesDoc struct {
	FeatureID     string               `yaml:"feature_id"`
	Validation    map[string]FieldRule `yaml:"validation"`
	BusinessRules []BusinessRule       `yaml:"business_rules,omitempty"`
}

// FieldRule holds validation constraints for one field.
//
//nolint:govet // Logical grouping preferred over field alignment.
type FieldRule struct {
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	MaxLength   int      `yaml:"max_length,omitempty"`
	MinLength   int      `yaml:"min_length,omitempty"`
	Minimum     *int64   `yaml:"minimum,omitempty"`
	Maximum     *int64   `yaml:"maximum,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty"`
	Unique      bool     `yaml:"unique,omitempty"`
	Values      []string `yaml:"values,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// BusinessRule is one high-level rule (e.g. lockout after repeated failures).
type BusinessRule struct {
	ID          string `yaml:"id"`
	Rule        string `yaml:"rule"`
	Description string `yaml:"description,omitempty"`
}

// TestCasesDoc is the test case set artifact.
type TestCasesDoc struct {
	FeatureID string     `yaml:"feature_id"`
	TestCases []TestCase `yaml:"testcases"`
}

// TestCase is one API test case definition.
//
//nolint:govet // Logical grouping preferred over field alignment.
type TestCase struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Input     map[string]any `yaml:"input"`
	Expected  Expectation    `yaml:"expected"`
	Narrative string         `yaml:"narrative,omitempty"`
}

// Expectation is the expected outcome of a test case.
type Expectation struct {
	Status    int    `yaml:"status"`
	ErrorCode string `yaml:"error_code,omitempty"`
}
