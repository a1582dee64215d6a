// Package artifact defines the five derived artifact kinds and their documents.
//
// Each kind is a tagged variant of Artifact with a kind-specific field
// extraction function registered in a fixed table, so consistency checking
// stays kind-agnostic and new kinds are added by registering one extractor.
package artifact

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind identifies one of the five derived artifact kinds.
type Kind string

const (
	KindAPI        Kind = "api"
	KindDBSchema   Kind = "db_schema"
	KindValidation Kind = "validation"
	KindRules      Kind = "rules"
	KindTestCases  Kind = "testcases"
)

// Kinds returns all artifact kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindAPI, KindDBSchema, KindValidation, KindRules, KindTestCases}
}

// IsValidKind checks whether k is one of the five known kinds.
func IsValidKind(k Kind) bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Filename returns the canonical slot filename for this kind.
func (k Kind) Filename() string {
	switch k {
	case KindAPI:
		return "api.yaml"
	case KindDBSchema:
		return "db_schema.yaml"
	case KindValidation:
		return "validation_schema.json"
	case KindRules:
		return "rules.yaml"
	case KindTestCases:
		return "testcases.yaml"
	default:
		return string(k) + ".yaml"
	}
}

// Artifact is one derived document. Exactly one of the document pointers is
// set, matching Kind.
//
//nolint:govet // Tagged union; logical grouping is more important than alignment.
type Artifact struct {
	Kind      Kind
	FeatureID string

	API        *APIDoc
	DBSchema   *DBSchemaDoc
	Validation *ValidationDoc
	Rules      *RulesDoc
	TestCases  *TestCasesDoc
}

// Encode serializes the artifact document in its canonical on-disk format:
// YAML for all kinds except the validation schema, which is JSON.
// Encoding is deterministic: struct field order and sorted map keys.
func (a *Artifact) Encode() ([]byte, error) {
	doc, err := a.document()
	if err != nil {
		return nil, err
	}
	if a.Kind == KindValidation {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s artifact: %w", a.Kind, err)
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s artifact: %w", a.Kind, err)
	}
	return data, nil
}

// Decode parses raw artifact content into a typed Artifact.
// Unknown fields are tolerated: drafts from the generation service are
// untrusted and validated later, not rejected at parse time.
func Decode(kind Kind, featureID string, raw []byte) (*Artifact, error) {
	a := &Artifact{Kind: kind, FeatureID: featureID}

	var err error
	switch kind {
	case KindAPI:
		a.API = &APIDoc{}
		err = yaml.Unmarshal(raw, a.API)
	case KindDBSchema:
		a.DBSchema = &DBSchemaDoc{}
		err = yaml.Unmarshal(raw, a.DBSchema)
	case KindValidation:
		a.Validation = &ValidationDoc{}
		err = json.Unmarshal(raw, a.Validation)
	case KindRules:
		a.Rules = &RulesDoc{}
		err = yaml.Unmarshal(raw, a.Rules)
	case KindTestCases:
		a.TestCases = &TestCasesDoc{}
		err = yaml.Unmarshal(raw, a.TestCases)
	default:
		return nil, fmt.Errorf("unknown artifact kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s artifact for %s: %w", kind, featureID, err)
	}
	return a, nil
}

// document returns the set variant, checking the tag matches.
func (a *Artifact) document() (any, error) {
	switch a.Kind {
	case KindAPI:
		if a.API != nil {
			return a.API, nil
		}
	case KindDBSchema:
		if a.DBSchema != nil {
			return a.DBSchema, nil
		}
	case KindValidation:
		if a.Validation != nil {
			return a.Validation, nil
		}
	case KindRules:
		if a.Rules != nil {
			return a.Rules, nil
		}
	case KindTestCases:
		if a.TestCases != nil {
			return a.TestCases, nil
		}
	default:
		return nil, fmt.Errorf("unknown artifact kind: %s", a.Kind)
	}
	return nil, fmt.Errorf("%s artifact for %s has no document", a.Kind, a.FeatureID)
}

// Set is a complete per-feature artifact set, one entry per kind.
type Set map[Kind]*Artifact

// Complete checks that every kind is present with a document.
func (s Set) Complete() error {
	for _, kind := range Kinds() {
		a, ok := s[kind]
		if !ok || a == nil {
			return fmt.Errorf("artifact set missing kind %s", kind)
		}
		if _, err := a.document(); err != nil {
			return err
		}
	}
	return nil
}
