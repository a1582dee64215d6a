// Package llm provides the text-generation client boundary: a small completion
// interface, provider implementations, and composable middleware for retry,
// timeout, and metrics.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// TemperatureDrafting is the temperature for artifact drafting.
	// Low to keep drafts close to the specification.
	TemperatureDrafting = 0.1

	// DefaultMaxTokens is the default completion budget per draft.
	DefaultMaxTokens = 4096
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // Value semantics preferred over pointer indirection.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Client defines the interface for text-generation interactions.
// The synthesizer treats every response as an untrusted draft.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the model identifier this client talks to.
	ModelName() string
}

// NewCompletionRequest creates a completion request with drafting defaults.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDrafting,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// Config represents configuration for a provider client.
type Config struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	HostURL     string // Ollama only
}

// Validate validates the provider configuration.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
