package artifact

import (
	"fmt"
)

// FieldInfo is one row of an artifact's field table: what the artifact claims
// about a field. Nil pointer members mean the artifact does not encode that
// aspect, so consistency checking skips it.
//
//nolint:govet // Logical grouping preferred over field alignment.
type FieldInfo struct {
	Type       string // artifact-local type token, "" if not declared
	Format     string // schema format qualifier, e.g. "date-time"
	Required   *bool
	Unique     *bool
	PrimaryKey bool
	MaxLength  int
	Enum       []string
	References string
}

// FieldTable maps field name to what one artifact declares about it.
type FieldTable map[string]FieldInfo

// ExtractFunc extracts an artifact's field table.
type ExtractFunc func(a *Artifact) (FieldTable, error)

// extractors is the fixed registry of kind-specific extraction rules.
//
//nolint:gochecknoglobals // Fixed registry, populated once
var extractors = map[Kind]ExtractFunc{
	KindAPI:        extractAPI,
	KindDBSchema:   extractDBSchema,
	KindValidation: extractValidation,
	KindRules:      extractRules,
	KindTestCases:  extractTestCases,
}

// Extract returns the field table for an artifact using its registered
// extraction rule.
func Extract(a *Artifact) (FieldTable, error) {
	fn, ok := extractors[a.Kind]
	if !ok {
		return nil, fmt.Errorf("no extraction rule registered for kind %s", a.Kind)
	}
	return fn(a)
}

func boolPtr(b bool) *bool { return &b }

// extractAPI collects the request body properties of every operation.
func extractAPI(a *Artifact) (FieldTable, error) {
	if a.API == nil {
		return nil, fmt.Errorf("api artifact for %s has no document", a.FeatureID)
	}

	table := make(FieldTable)
	for _, item := range a.API.Paths {
		if item.Post == nil || item.Post.RequestBody == nil {
			continue
		}
		for _, media := range item.Post.RequestBody.Content {
			schema := media.Schema
			if schema == nil {
				continue
			}
			required := make(map[string]bool, len(schema.Required))
			for _, name := range schema.Required {
				required[name] = true
			}
			for name, prop := range schema.Properties {
				if prop == nil {
					continue
				}
				table[name] = FieldInfo{
					Type:      prop.Type,
					Format:    prop.Format,
					Required:  boolPtr(required[name]),
					MaxLength: prop.MaxLength,
					Enum:      prop.Enum,
				}
			}
		}
	}
	return table, nil
}

// extractDBSchema reads the feature's table; when no table carries the
// feature id, the first table is used.
func extractDBSchema(a *Artifact) (FieldTable, error) {
	if a.DBSchema == nil {
		return nil, fmt.Errorf("db_schema artifact for %s has no document", a.FeatureID)
	}
	if len(a.DBSchema.Tables) == 0 {
		return FieldTable{}, nil
	}

	target := &a.DBSchema.Tables[0]
	for i := range a.DBSchema.Tables {
		if a.DBSchema.Tables[i].Name == a.FeatureID {
			target = &a.DBSchema.Tables[i]
			break
		}
	}

	table := make(FieldTable, len(target.Columns))
	for i := range target.Columns {
		col := &target.Columns[i]
		table[col.Name] = FieldInfo{
			Type:       col.Type,
			Required:   boolPtr(!col.Nullable),
			Unique:     boolPtr(col.Unique || col.PrimaryKey),
			PrimaryKey: col.PrimaryKey,
			MaxLength:  col.MaxLength,
			Enum:       col.Values,
			References: col.References,
		}
	}
	return table, nil
}

// extractValidation reads the JSON Schema properties and required list.
func extractValidation(a *Artifact) (FieldTable, error) {
	if a.Validation == nil {
		return nil, fmt.Errorf("validation artifact for %s has no document", a.FeatureID)
	}

	required := make(map[string]bool, len(a.Validation.Required))
	for _, name := range a.Validation.Required {
		required[name] = true
	}

	table := make(FieldTable, len(a.Validation.Properties))
	for name, prop := range a.Validation.Properties {
		if prop == nil {
			continue
		}
		table[name] = FieldInfo{
			Type:      prop.Type,
			Format:    prop.Format,
			Required:  boolPtr(required[name]),
			Unique:    boolPtr(prop.Unique),
			MaxLength: prop.MaxLength,
			Enum:      prop.Enum,
		}
	}
	return table, nil
}

// extractRules reads the per-field validation rules. Business rules carry no
// field bindings and are not part of the field table.
func extractRules(a *Artifact) (FieldTable, error) {
	if a.Rules == nil {
		return nil, fmt.Errorf("rules artifact for %s has no document", a.FeatureID)
	}

	table := make(FieldTable, len(a.Rules.Validation))
	for name, rule := range a.Rules.Validation {
		table[name] = FieldInfo{
			Type:      rule.Type,
			Required:  boolPtr(rule.Required),
			Unique:    boolPtr(rule.Unique),
			MaxLength: rule.MaxLength,
			Enum:      rule.Values,
		}
	}
	return table, nil
}

// extractTestCases unions the input field names across all test cases.
// Test case inputs carry no type or nullability declarations, so only field
// presence is checked against the source of truth.
func extractTestCases(a *Artifact) (FieldTable, error) {
	if a.TestCases == nil {
		return nil, fmt.Errorf("testcases artifact for %s has no document", a.FeatureID)
	}

	table := make(FieldTable)
	for i := range a.TestCases.TestCases {
		for name := range a.TestCases.TestCases[i].Input {
			if _, seen := table[name]; !seen {
				table[name] = FieldInfo{}
			}
		}
	}
	return table, nil
}
