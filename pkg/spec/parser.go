package spec

import (
	"bytes"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var featureIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Parse parses a raw YAML specification document into a FeatureSpec.
//
// The parse is pure: no partial recovery, no side effects. Every structural
// problem is collected into a single MalformedSpecError so the author sees the
// complete list at once.
func Parse(raw []byte) (*FeatureSpec, error) {
	var fs FeatureSpec

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fs); err != nil {
		return nil, &MalformedSpecError{
			Problems: []string{fmt.Sprintf("invalid YAML: %v", err)},
		}
	}
	fs.RawYAML = string(raw)

	if problems := validate(&fs); len(problems) > 0 {
		return nil, &MalformedSpecError{FeatureID: fs.ID, Problems: problems}
	}

	return &fs, nil
}

// validate performs structural validation on a decoded FeatureSpec.
// All checks run; problems are collected, never short-circuited.
func validate(fs *FeatureSpec) []string {
	var problems []string

	if fs.ID == "" {
		problems = append(problems, "missing required section: feature_id")
	} else if !featureIDPattern.MatchString(fs.ID) {
		problems = append(problems, fmt.Sprintf("feature_id %q must match %s", fs.ID, featureIDPattern.String()))
	}

	if len(fs.Fields) == 0 {
		problems = append(problems, "missing required section: fields (at least one field declaration)")
	}

	seen := make(map[string]int) // name -> first index
	for i := range fs.Fields {
		f := &fs.Fields[i]
		label := f.Name
		if label == "" {
			label = fmt.Sprintf("fields[%d]", i)
		}

		if f.Name == "" {
			problems = append(problems, fmt.Sprintf("%s: field has no name", label))
		} else if prev, dup := seen[f.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate field name %q (entries %d and %d)", f.Name, prev, i))
		} else {
			seen[f.Name] = i
		}

		switch {
		case f.Type == "":
			problems = append(problems, fmt.Sprintf("%s: field has no semantic type", label))
		case !IsKnownType(f.Type):
			problems = append(problems, fmt.Sprintf("%s: unknown semantic type %q", label, f.Type))
		case f.Type == TypeEnum && len(f.EnumValues) == 0:
			problems = append(problems, fmt.Sprintf("%s: enum field declares no values", label))
		case f.Type == TypeReference && f.References == "":
			problems = append(problems, fmt.Sprintf("%s: reference field declares no target feature", label))
		}

		if f.Type != TypeEnum && len(f.EnumValues) > 0 {
			problems = append(problems, fmt.Sprintf("%s: values only allowed on enum fields", label))
		}
		if f.Type != TypeReference && f.References != "" {
			problems = append(problems, fmt.Sprintf("%s: references only allowed on reference fields", label))
		}
		if c := f.Constraints; c.Minimum != nil && c.Maximum != nil && *c.Minimum > *c.Maximum {
			problems = append(problems, fmt.Sprintf("%s: minimum %d exceeds maximum %d", label, *c.Minimum, *c.Maximum))
		}
		if f.PrimaryKey && f.Nullable {
			problems = append(problems, fmt.Sprintf("%s: primary key cannot be nullable", label))
		}
	}

	return problems
}
