package lint

import (
	"ssotgen/pkg/artifact"
	"ssotgen/pkg/spec"
)

// Type compatibility is decided by mapping every type token onto a canonical
// class. Tokens in the same class are compatible; anything else is a
// TypeConflict. The table is fixed: adding a representation means adding it
// here, not loosening a comparison.

const (
	classString    = "string"
	classInteger   = "integer"
	classBoolean   = "boolean"
	classTimestamp = "timestamp"
)

// tokenClasses maps artifact-local type tokens to their canonical class.
// Enum and reference values travel as strings in every representation.
//
//nolint:gochecknoglobals // Fixed lookup table.
var tokenClasses = map[string]string{
	"string":    classString,
	"text":      classString,
	"varchar":   classString,
	"enum":      classString,
	"reference": classString,
	"integer":   classInteger,
	"int":       classInteger,
	"bigint":    classInteger,
	"number":    classInteger,
	"boolean":   classBoolean,
	"bool":      classBoolean,
	"timestamp": classTimestamp,
	"datetime":  classTimestamp,
}

// infoClass resolves an artifact field declaration to its canonical class.
// A schema string qualified with a date-time format counts as a timestamp.
// Unknown tokens map to themselves so they conflict with everything else.
func infoClass(info artifact.FieldInfo) string {
	if info.Type == "string" && info.Format == "date-time" {
		return classTimestamp
	}
	if class, ok := tokenClasses[info.Type]; ok {
		return class
	}
	return info.Type
}

// semanticClass resolves a canonical semantic type to its class.
func semanticClass(t spec.SemanticType) string {
	switch t {
	case spec.TypeString, spec.TypeEnum, spec.TypeReference:
		return classString
	case spec.TypeInteger:
		return classInteger
	case spec.TypeBoolean:
		return classBoolean
	case spec.TypeTimestamp:
		return classTimestamp
	default:
		return string(t)
	}
}

func sameEnum(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
