package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ssotgen/pkg/llm/llmerrors"
)

// OpenAIClient wraps the official OpenAI Go client to implement the Client
// interface. Raw client; middleware is applied at a higher level.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI client with the given model.
func NewOpenAIClient(apiKey, model string) Client {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements the Client interface via the Chat Completions API.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "unsupported message role: "+string(msg.Role))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(in.MaxTokens)),
		Temperature:         openai.Float(float64(in.Temperature)),
	})
	if err != nil {
		statusCode := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			statusCode = apiErr.StatusCode
		}
		return CompletionResponse{}, classifyProviderError(err, statusCode)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from OpenAI")
	}

	return CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		PromptTokens: int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// ModelName returns the model identifier.
func (o *OpenAIClient) ModelName() string {
	return o.model
}
