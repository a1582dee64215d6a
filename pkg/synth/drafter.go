package synth

import (
	"context"
	"fmt"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/llm"
	"ssotgen/pkg/logx"
	"ssotgen/pkg/spec"
)

// DraftProvider produces a free-form artifact draft for one feature and kind.
// The synthesizer treats the draft as untrusted input: only whitelisted
// free-text slots survive the merge into the deterministic skeleton.
type DraftProvider interface {
	Draft(ctx context.Context, fs *spec.FeatureSpec, kind artifact.Kind) (string, error)
}

// LLMDrafter drafts artifacts through an LLM client. The client is expected to
// carry its own retry, timeout and metrics middleware.
type LLMDrafter struct {
	client  llm.Client
	counter *llm.TokenCounter
	opts    DraftOptions
	logger  *logx.Logger
}

// DraftOptions tunes the completion requests a drafter issues. Zero values
// fall back to the llm package defaults.
type DraftOptions struct {
	Temperature      float32 // sampling temperature per draft
	MaxTokens        int     // completion budget per draft
	MaxContextTokens int     // prompt budget enforced before sending
}

// NewLLMDrafter wires a drafter around a completion client.
func NewLLMDrafter(client llm.Client, opts DraftOptions) *LLMDrafter {
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = llm.DefaultMaxContextTokens
	}
	logger := logx.NewLogger("synth")
	counter, err := llm.NewTokenCounter()
	if err != nil {
		// CountTokens falls back to character estimation on a nil counter.
		logger.Warn("tokenizer unavailable, using character estimation: %v", err)
	}
	return &LLMDrafter{
		client:  client,
		counter: counter,
		opts:    opts,
		logger:  logger,
	}
}

// Draft requests a draft document from the model and strips the code fence.
func (d *LLMDrafter) Draft(ctx context.Context, fs *spec.FeatureSpec, kind artifact.Kind) (string, error) {
	system, ok := systemPrompts[kind]
	if !ok {
		return "", fmt.Errorf("no drafting prompt for kind %s", kind)
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(userPrompt(fs, kind)),
	})
	if d.opts.Temperature > 0 {
		req.Temperature = d.opts.Temperature
	}
	if d.opts.MaxTokens > 0 {
		req.MaxTokens = d.opts.MaxTokens
	}

	if n := d.counter.CountRequest(req); n > d.opts.MaxContextTokens {
		return "", fmt.Errorf("prompt for %s/%s is %d tokens, over the %d token limit",
			fs.ID, kind, n, d.opts.MaxContextTokens)
	}

	ctx = llm.WithRequestLabels(ctx, llm.RequestLabels{FeatureID: fs.ID, Kind: string(kind)})
	resp, err := d.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	d.logger.Debug("drafted %s/%s: %d prompt tokens, %d output tokens",
		fs.ID, kind, resp.PromptTokens, resp.OutputTokens)
	return extractCodeBlock(resp.Content), nil
}

// TemplateDrafter produces drafts without any external service by encoding the
// deterministic skeleton with canned prose. Useful offline and in tests.
type TemplateDrafter struct{}

// Draft renders the skeleton for the requested kind with template descriptions
// filled in.
func (TemplateDrafter) Draft(_ context.Context, fs *spec.FeatureSpec, kind artifact.Kind) (string, error) {
	a, err := buildSkeleton(fs, kind)
	if err != nil {
		return "", err
	}
	fillTemplateProse(a, fs)
	raw, err := a.Encode()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// fillTemplateProse writes deterministic descriptions into a skeleton.
func fillTemplateProse(a *artifact.Artifact, fs *spec.FeatureSpec) {
	describe := func(name string) string {
		if f := fs.Field(name); f != nil && f.Description != "" {
			return f.Description
		}
		return fmt.Sprintf("The %s field of %s.", name, fs.ID)
	}

	switch a.Kind {
	case artifact.KindAPI:
		a.API.Info.Description = fmt.Sprintf("API contract for the %s feature.", fs.ID)
		for _, item := range a.API.Paths {
			if item.Post == nil || item.Post.RequestBody == nil {
				continue
			}
			item.Post.Description = fmt.Sprintf("Handles a %s request.", fs.ID)
			for _, mt := range item.Post.RequestBody.Content {
				if mt.Schema == nil {
					continue
				}
				for name, prop := range mt.Schema.Properties {
					prop.Description = describe(name)
				}
			}
		}
	case artifact.KindDBSchema:
		for i := range a.DBSchema.Tables {
			t := &a.DBSchema.Tables[i]
			t.Description = fmt.Sprintf("Storage for the %s feature.", fs.ID)
			for j := range t.Columns {
				t.Columns[j].Description = describe(t.Columns[j].Name)
			}
		}
	case artifact.KindValidation:
		for name, prop := range a.Validation.Properties {
			prop.Description = describe(name)
		}
	case artifact.KindRules:
		for name, rule := range a.Rules.Validation {
			rule.Description = describe(name)
			a.Rules.Validation[name] = rule
		}
		for i := range a.Rules.BusinessRules {
			a.Rules.BusinessRules[i].Description =
				fmt.Sprintf("Business rule %d for %s.", i+1, fs.ID)
		}
	case artifact.KindTestCases:
		for i := range a.TestCases.TestCases {
			tc := &a.TestCases.TestCases[i]
			tc.Narrative = fmt.Sprintf("Exercises %s: %s.", fs.ID, tc.Name)
		}
	}
}
