package llm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"ssotgen/pkg/llm/llmerrors"
)

// DefaultOllamaHost is used when no host URL is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient wraps the Ollama API client to implement the Client interface.
// Ollama is a local runtime for open-source models; useful for drafting
// without a remote provider.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a new Ollama client.
// hostURL should be the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaClient(hostURL, model string) Client {
	if hostURL == "" {
		hostURL = DefaultOllamaHost
	}
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse(DefaultOllamaHost)
	}

	return &OllamaClient{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the Client interface.
func (o *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
			messages = append(messages, api.Message{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		default:
			return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "unsupported message role: "+string(msg.Role))
		}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, classifyProviderError(err, 0)
	}

	if response.Message.Content == "" {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Ollama")
	}

	return CompletionResponse{
		Content:      response.Message.Content,
		PromptTokens: response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}, nil
}

// ModelName returns the model identifier.
func (o *OllamaClient) ModelName() string {
	return o.model
}
