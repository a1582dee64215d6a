package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ssotgen/pkg/llm/llmerrors"
)

// AnthropicClient wraps the Anthropic API client to implement the Client
// interface. Raw client; middleware is applied at a higher level.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates a new Anthropic client with the given model.
func NewAnthropicClient(apiKey, model string) Client {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Complete implements the Client interface.
// System messages are extracted to the top-level system parameter; the
// Anthropic API only accepts user and assistant roles in the messages array.
func (c *AnthropicClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var systemParts []string
	messages := make([]anthropic.MessageParam, 0, len(in.Messages))

	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "unsupported message role: "+string(msg.Role))
		}
	}

	if len(messages) == 0 || messages[len(messages)-1].Role != anthropic.MessageParamRoleUser {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "last message must be a user message")
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{{
			Text: strings.Join(systemParts, "\n\n"),
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, classifyProviderError(err, 0)
	}

	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Anthropic API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			textBlock := block.AsText()
			text.WriteString(textBlock.Text)
		}
	}

	return CompletionResponse{
		Content:      text.String(),
		PromptTokens: int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// ModelName returns the model identifier.
func (c *AnthropicClient) ModelName() string {
	return string(c.model)
}
