package synth

import (
	"fmt"
	"strings"

	"ssotgen/pkg/artifact"
)

// The merge whitelist: drafts contribute descriptions, summaries, examples,
// business-rule prose, and additional test cases. Everything structural
// (field sets, types, constraints, requiredness) comes from the skeleton and
// ignores the draft entirely.

func mergeDraft(skel, draft *artifact.Artifact) {
	if draft == nil {
		return
	}
	switch skel.Kind {
	case artifact.KindAPI:
		mergeAPI(skel.API, draft.API)
	case artifact.KindDBSchema:
		mergeDBSchema(skel.DBSchema, draft.DBSchema)
	case artifact.KindValidation:
		mergeValidation(skel.Validation, draft.Validation)
	case artifact.KindRules:
		mergeRules(skel.Rules, draft.Rules)
	case artifact.KindTestCases:
		mergeTestCases(skel.TestCases, draft.TestCases)
	}
}

func mergeSchemaProse(dst, src map[string]*artifact.SchemaObject) {
	for name, prop := range dst {
		from, ok := src[name]
		if !ok || from == nil {
			continue
		}
		if from.Description != "" {
			prop.Description = from.Description
		}
		if from.Example != "" {
			prop.Example = from.Example
		}
	}
}

func draftOperation(doc *artifact.APIDoc) *artifact.Operation {
	if doc == nil {
		return nil
	}
	for _, item := range doc.Paths {
		if item.Post != nil {
			return item.Post
		}
	}
	return nil
}

func requestProperties(op *artifact.Operation) map[string]*artifact.SchemaObject {
	if op == nil || op.RequestBody == nil {
		return nil
	}
	for _, mt := range op.RequestBody.Content {
		if mt.Schema != nil && mt.Schema.Properties != nil {
			return mt.Schema.Properties
		}
	}
	return nil
}

func mergeAPI(dst, src *artifact.APIDoc) {
	if src == nil {
		return
	}
	if src.Info.Description != "" {
		dst.Info.Description = src.Info.Description
	}
	from := draftOperation(src)
	if from == nil {
		return
	}
	fromProps := requestProperties(from)
	for path, item := range dst.Paths {
		if item.Post == nil {
			continue
		}
		if from.Summary != "" {
			item.Post.Summary = from.Summary
		}
		if from.Description != "" {
			item.Post.Description = from.Description
		}
		if props := requestProperties(item.Post); props != nil {
			mergeSchemaProse(props, fromProps)
		}
		for status, resp := range item.Post.Responses {
			if fr, ok := from.Responses[status]; ok && fr.Description != "" {
				resp.Description = fr.Description
				item.Post.Responses[status] = resp
			}
		}
		dst.Paths[path] = item
	}
}

func mergeDBSchema(dst, src *artifact.DBSchemaDoc) {
	if src == nil || len(src.Tables) == 0 {
		return
	}
	from := &src.Tables[0]
	byName := make(map[string]*artifact.Column, len(from.Columns))
	for i := range from.Columns {
		byName[from.Columns[i].Name] = &from.Columns[i]
	}
	for i := range dst.Tables {
		t := &dst.Tables[i]
		if from.Description != "" {
			t.Description = from.Description
		}
		for j := range t.Columns {
			if c, ok := byName[t.Columns[j].Name]; ok && c.Description != "" {
				t.Columns[j].Description = c.Description
			}
		}
	}
}

func mergeValidation(dst, src *artifact.ValidationDoc) {
	if src == nil {
		return
	}
	if src.Title != "" {
		dst.Title = src.Title
	}
	mergeSchemaProse(dst.Properties, src.Properties)
}

func mergeRules(dst, src *artifact.RulesDoc) {
	if src == nil {
		return
	}
	for name, rule := range dst.Validation {
		if from, ok := src.Validation[name]; ok && from.Description != "" {
			rule.Description = from.Description
			dst.Validation[name] = rule
		}
	}
	// Business rules are free prose: a non-empty draft list replaces the
	// mechanical skeleton rendering, with IDs reassigned.
	if len(src.BusinessRules) > 0 {
		rules := make([]artifact.BusinessRule, len(src.BusinessRules))
		for i, r := range src.BusinessRules {
			rules[i] = artifact.BusinessRule{
				ID:          fmt.Sprintf("BR-%03d", i+1),
				Rule:        r.Rule,
				Description: r.Description,
			}
		}
		dst.BusinessRules = rules
	}
}

func mergeTestCases(dst, src *artifact.TestCasesDoc) {
	if src == nil {
		return
	}
	// Prose for the deterministic cases is matched by name.
	byName := make(map[string]*artifact.TestCase, len(src.TestCases))
	for i := range src.TestCases {
		byName[normalizeCaseName(src.TestCases[i].Name)] = &src.TestCases[i]
	}
	seen := make(map[string]bool, len(dst.TestCases))
	for i := range dst.TestCases {
		tc := &dst.TestCases[i]
		seen[normalizeCaseName(tc.Name)] = true
		if from, ok := byName[normalizeCaseName(tc.Name)]; ok && from.Narrative != "" {
			tc.Narrative = from.Narrative
		}
	}
	// Extra draft cases are appended with fresh IDs. Their inputs still face
	// the consistency gate before anything is stored.
	next := len(dst.TestCases) + 1
	for i := range src.TestCases {
		tc := src.TestCases[i]
		if tc.Name == "" || seen[normalizeCaseName(tc.Name)] || len(tc.Input) == 0 {
			continue
		}
		seen[normalizeCaseName(tc.Name)] = true
		tc.ID = fmt.Sprintf("TC-%03d", next)
		next++
		dst.TestCases = append(dst.TestCases, tc)
	}
}

func normalizeCaseName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
