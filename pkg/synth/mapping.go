package synth

import (
	"fmt"
	"sort"
	"strings"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/spec"
)

// The deterministic mapping portion of synthesis: semantic type to
// artifact-specific representation, per kind. Re-running with an unchanged
// FeatureSpec yields byte-for-byte identical skeletons.

// schemaType maps a semantic type to JSON-Schema type and format, used by the
// API contract and the validation schema artifacts.
func schemaType(f *spec.FieldSpec) (typ, format string) {
	switch f.Type {
	case spec.TypeString:
		return "string", ""
	case spec.TypeInteger:
		return "integer", ""
	case spec.TypeBoolean:
		return "boolean", ""
	case spec.TypeTimestamp:
		return "string", "date-time"
	case spec.TypeEnum:
		return "string", ""
	case spec.TypeReference:
		// References travel as foreign identifiers on the wire.
		return "string", ""
	default:
		return string(f.Type), ""
	}
}

// columnType maps a semantic type to a logical column type.
func columnType(f *spec.FieldSpec) string {
	switch f.Type {
	case spec.TypeString, spec.TypeEnum, spec.TypeReference:
		return "varchar"
	case spec.TypeInteger:
		return "bigint"
	case spec.TypeBoolean:
		return "boolean"
	case spec.TypeTimestamp:
		return "timestamp"
	default:
		return string(f.Type)
	}
}

// primaryKeyField picks the primary key column: an explicit primary_key flag
// wins; otherwise the first non-nullable field named "id" or ending in "_id".
func primaryKeyField(fs *spec.FeatureSpec) string {
	for i := range fs.Fields {
		if fs.Fields[i].PrimaryKey {
			return fs.Fields[i].Name
		}
	}
	for i := range fs.Fields {
		f := &fs.Fields[i]
		if f.Nullable {
			continue
		}
		if f.Name == "id" || strings.HasSuffix(f.Name, "_id") {
			return f.Name
		}
	}
	return ""
}

func fieldSchema(f *spec.FieldSpec) *artifact.SchemaObject {
	typ, format := schemaType(f)
	obj := &artifact.SchemaObject{
		Type:      typ,
		Format:    format,
		MaxLength: f.Constraints.MaxLength,
		MinLength: f.Constraints.MinLength,
		Minimum:   f.Constraints.Minimum,
		Maximum:   f.Constraints.Maximum,
		Pattern:   f.Constraints.Pattern,
	}
	if f.Type == spec.TypeEnum {
		obj.Enum = f.EnumValues
	}
	return obj
}

func buildAPI(fs *spec.FeatureSpec) *artifact.APIDoc {
	properties := make(map[string]*artifact.SchemaObject)
	var required []string
	for i := range fs.Fields {
		f := &fs.Fields[i]
		if f.Internal {
			continue
		}
		properties[f.Name] = fieldSchema(f)
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)

	title := fs.Title
	if title == "" {
		title = fs.ID
	}

	return &artifact.APIDoc{
		OpenAPI: "3.0.3",
		Info: artifact.APIInfo{
			Title:   title,
			Version: "1.0.0",
		},
		Paths: map[string]artifact.PathItem{
			"/" + fs.ID: {
				Post: &artifact.Operation{
					Summary: fmt.Sprintf("Submit a %s request", fs.ID),
					RequestBody: &artifact.RequestBody{
						Required: true,
						Content: map[string]artifact.MediaType{
							"application/json": {
								Schema: &artifact.SchemaObject{
									Type:       "object",
									Properties: properties,
									Required:   required,
								},
							},
						},
					},
					Responses: map[string]artifact.Response{
						"200": {Description: "Request accepted"},
						"400": {Description: "Request validation failed"},
					},
				},
			},
		},
	}
}

func buildDBSchema(fs *spec.FeatureSpec) *artifact.DBSchemaDoc {
	pk := primaryKeyField(fs)

	columns := make([]artifact.Column, 0, len(fs.Fields))
	for i := range fs.Fields {
		f := &fs.Fields[i]
		col := artifact.Column{
			Name:       f.Name,
			Type:       columnType(f),
			Nullable:   f.Nullable,
			PrimaryKey: f.Name == pk,
			Unique:     f.Constraints.Unique,
			MaxLength:  f.Constraints.MaxLength,
			References: f.References,
			Default:    f.Default,
		}
		if f.Type == spec.TypeEnum {
			col.Values = f.EnumValues
		}
		columns = append(columns, col)
	}

	return &artifact.DBSchemaDoc{
		FeatureID: fs.ID,
		Tables: []artifact.Table{
			{Name: fs.ID, Columns: columns},
		},
	}
}

func buildValidation(fs *spec.FeatureSpec) *artifact.ValidationDoc {
	properties := make(map[string]*artifact.SchemaObject)
	var required []string
	for i := range fs.Fields {
		f := &fs.Fields[i]
		obj := fieldSchema(f)
		obj.Unique = f.Constraints.Unique || f.PrimaryKey
		properties[f.Name] = obj
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)

	return &artifact.ValidationDoc{
		Schema:     "http://json-schema.org/draft-07/schema#",
		Title:      fs.ID,
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func buildRules(fs *spec.FeatureSpec) *artifact.RulesDoc {
	validation := make(map[string]artifact.FieldRule, len(fs.Fields))
	for i := range fs.Fields {
		f := &fs.Fields[i]
		rule := artifact.FieldRule{
			Type:      string(f.Type),
			Required:  !f.Nullable,
			MaxLength: f.Constraints.MaxLength,
			MinLength: f.Constraints.MinLength,
			Minimum:   f.Constraints.Minimum,
			Maximum:   f.Constraints.Maximum,
			Pattern:   f.Constraints.Pattern,
			// Primary key columns enforce uniqueness structurally, so the
			// rule carries it even without an explicit unique constraint.
			Unique: f.Constraints.Unique || f.PrimaryKey,
		}
		if f.Type == spec.TypeEnum {
			rule.Values = f.EnumValues
		}
		validation[f.Name] = rule
	}

	// Business rule keys are sorted so the skeleton is reproducible.
	keys := make([]string, 0, len(fs.BusinessRules))
	for k := range fs.BusinessRules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rules := make([]artifact.BusinessRule, 0, len(keys))
	for i, k := range keys {
		rules = append(rules, artifact.BusinessRule{
			ID:   fmt.Sprintf("BR-%03d", i+1),
			Rule: fmt.Sprintf("%s: %v", k, fs.BusinessRules[k]),
		})
	}

	return &artifact.RulesDoc{
		FeatureID:     fs.ID,
		Validation:    validation,
		BusinessRules: rules,
	}
}

// exampleValue produces a deterministic, constraint-respecting example for a
// field, used for test case inputs.
func exampleValue(f *spec.FieldSpec) any {
	switch f.Type {
	case spec.TypeInteger:
		if f.Constraints.Minimum != nil {
			return *f.Constraints.Minimum
		}
		return int64(1)
	case spec.TypeBoolean:
		return true
	case spec.TypeTimestamp:
		return "2024-01-01T00:00:00Z"
	case spec.TypeEnum:
		if len(f.EnumValues) > 0 {
			return f.EnumValues[0]
		}
		return ""
	case spec.TypeReference:
		return f.References + "_1"
	default:
		v := f.Name + "_1"
		if max := f.Constraints.MaxLength; max > 0 && len(v) > max {
			v = v[:max]
		}
		if min := f.Constraints.MinLength; min > 0 && len(v) < min {
			v += strings.Repeat("x", min-len(v))
		}
		return v
	}
}

func buildTestCases(fs *spec.FeatureSpec) *artifact.TestCasesDoc {
	validInput := make(map[string]any)
	var requiredNames []string
	for i := range fs.Fields {
		f := &fs.Fields[i]
		if f.Internal {
			continue
		}
		validInput[f.Name] = exampleValue(f)
		if !f.Nullable {
			requiredNames = append(requiredNames, f.Name)
		}
	}
	sort.Strings(requiredNames)

	cases := []artifact.TestCase{
		{
			ID:       "TC-001",
			Name:     "valid request succeeds",
			Input:    validInput,
			Expected: artifact.Expectation{Status: 200},
		},
	}

	for i, name := range requiredNames {
		input := make(map[string]any, len(validInput)-1)
		for k, v := range validInput {
			if k != name {
				input[k] = v
			}
		}
		cases = append(cases, artifact.TestCase{
			ID:       fmt.Sprintf("TC-%03d", i+2),
			Name:     fmt.Sprintf("missing required field %s is rejected", name),
			Input:    input,
			Expected: artifact.Expectation{Status: 400, ErrorCode: "VALIDATION_ERROR"},
		})
	}

	return &artifact.TestCasesDoc{
		FeatureID: fs.ID,
		TestCases: cases,
	}
}

// buildSkeleton runs the deterministic mapping for one artifact kind.
func buildSkeleton(fs *spec.FeatureSpec, kind artifact.Kind) (*artifact.Artifact, error) {
	a := &artifact.Artifact{Kind: kind, FeatureID: fs.ID}
	switch kind {
	case artifact.KindAPI:
		a.API = buildAPI(fs)
	case artifact.KindDBSchema:
		a.DBSchema = buildDBSchema(fs)
	case artifact.KindValidation:
		a.Validation = buildValidation(fs)
	case artifact.KindRules:
		a.Rules = buildRules(fs)
	case artifact.KindTestCases:
		a.TestCases = buildTestCases(fs)
	default:
		return nil, fmt.Errorf("unknown artifact kind: %s", kind)
	}
	return a, nil
}
