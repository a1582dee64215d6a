// Package spec provides feature specification parsing and structural validation.
//
// A feature specification is the single source of truth for one feature: every
// derived artifact must trace back to the fields declared here.
package spec

import (
	"fmt"
	"strings"
)

// SemanticType is the declared type of a field, drawn from a fixed enumeration.
type SemanticType string

const (
	TypeString    SemanticType = "string"
	TypeInteger   SemanticType = "integer"
	TypeBoolean   SemanticType = "boolean"
	TypeTimestamp SemanticType = "timestamp"
	TypeEnum      SemanticType = "enum"
	TypeReference SemanticType = "reference"
)

// KnownTypes returns all valid semantic types.
func KnownTypes() []SemanticType {
	return []SemanticType{
		TypeString,
		TypeInteger,
		TypeBoolean,
		TypeTimestamp,
		TypeEnum,
		TypeReference,
	}
}

// IsKnownType checks whether a semantic type is part of the fixed enumeration.
func IsKnownType(t SemanticType) bool {
	for _, known := range KnownTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Constraints holds the optional field-level constraints of a FieldSpec.
type Constraints struct {
	MaxLength int    `yaml:"max_length,omitempty"`
	MinLength int    `yaml:"min_length,omitempty"`
	Minimum   *int64 `yaml:"minimum,omitempty"`
	Maximum   *int64 `yaml:"maximum,omitempty"`
	Unique    bool   `yaml:"unique,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`
}

// IsZero reports whether no constraint is set.
func (c Constraints) IsZero() bool {
	return c.MaxLength == 0 && c.MinLength == 0 && c.Minimum == nil &&
		c.Maximum == nil && !c.Unique && c.Pattern == ""
}

// FieldSpec declares one field of a feature: name, semantic type, nullability,
// optional default, and constraints. Owned exclusively by its FeatureSpec.
//
//nolint:govet // Field alignment optimization would hurt readability; logical grouping is more important.
type FieldSpec struct {
	Name        string       `yaml:"name"`
	Type        SemanticType `yaml:"type"`
	Nullable    bool         `yaml:"nullable,omitempty"`
	Internal    bool         `yaml:"internal,omitempty"` // internal-only: may be absent from the API contract
	PrimaryKey  bool         `yaml:"primary_key,omitempty"`
	Default     *string      `yaml:"default,omitempty"`
	EnumValues  []string     `yaml:"values,omitempty"`     // required for type: enum
	References  string       `yaml:"references,omitempty"` // target feature id, required for type: reference
	Constraints Constraints  `yaml:"constraints,omitempty"`
	Description string       `yaml:"description,omitempty"`
}

// FeatureSpec is the parsed, validated model of one feature specification
// document. It is an immutable input to a pipeline run.
//
//nolint:govet // Field alignment optimization would hurt readability; logical grouping is more important.
type FeatureSpec struct {
	ID            string         `yaml:"feature_id"`
	Title         string         `yaml:"title,omitempty"`
	Fields        []FieldSpec    `yaml:"fields"`
	Notes         []string       `yaml:"notes,omitempty"`          // free-form behavioral notes
	BusinessRules map[string]any `yaml:"business_rules,omitempty"` // e.g. max_fail_count, lock_on_fail

	// Raw content for reference (prompt construction, logging).
	RawYAML string `yaml:"-"`
}

// Field returns the FieldSpec with the given name, or nil.
func (s *FeatureSpec) Field(name string) *FieldSpec {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// FieldNames returns the declared field names in declaration order.
func (s *FeatureSpec) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for i := range s.Fields {
		names = append(names, s.Fields[i].Name)
	}
	return names
}

// MalformedSpecError reports every structural problem found in a specification
// document. Any structural error aborts the whole run, so the full list is
// collected in one pass for the author.
type MalformedSpecError struct {
	FeatureID string
	Problems  []string
}

func (e *MalformedSpecError) Error() string {
	id := e.FeatureID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("malformed spec %s: %s", id, strings.Join(e.Problems, "; "))
}
