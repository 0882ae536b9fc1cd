package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/caardbot/caard/internal/types"
)

// openaiBackend wraps an OpenAI-compatible chat client.
type openaiBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a Backend over an OpenAI-compatible endpoint.
// baseURL may be empty to use the provider default.
func NewOpenAIBackend(apiKey, baseURL, model string) (Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &openaiBackend{
		client: &client,
		model:  model,
	}, nil
}

func (b *openaiBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := buildChatParams(req, b.model)

	resp, err := b.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		slog.Error("failed to call chat completion API", "error", err.Error(), "model", b.model)
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &Completion{}, nil
	}

	message := resp.Choices[0].Message
	completion := &Completion{
		Usage: types.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}

	if message.Content != "" {
		completion.Parts = append(completion.Parts, Part{Text: message.Content})
	}
	for _, tc := range message.ToolCalls {
		// Only function tool calls are supported.
		if tc.Type != "function" {
			continue
		}
		completion.Parts = append(completion.Parts, Part{
			ToolCall: &ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	if err := LogUsage(b.model, completion.Usage); err != nil {
		return nil, err
	}
	return completion, nil
}

// buildChatParams converts a CompletionRequest to OpenAI parameters.
func buildChatParams(req CompletionRequest, model string) *openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: model,
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params.Messages = messages

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return &params
}

func convertTools(defs []types.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        def.Name,
					Description: openai.String(def.Description),
					Parameters:  schemaToFunctionParameters(def.Parameters),
				},
			},
		})
	}
	return tools
}
