package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultMaxContextTokens is the prompt budget applied when none is configured.
const DefaultMaxContextTokens = 100000

// TokenCounter provides token counting for prompt budget enforcement.
// All supported providers are approximated with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		// Character-based estimation (4 chars per token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountRequest returns the total prompt tokens of a completion request.
func (tc *TokenCounter) CountRequest(req CompletionRequest) int {
	total := 0
	for i := range req.Messages {
		total += tc.CountTokens(req.Messages[i].Content)
	}
	return total
}
