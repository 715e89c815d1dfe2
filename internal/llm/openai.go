package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint,
// OpenRouter included.
type OpenAIClient struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIClient creates a client for the given endpoint. An empty baseURL
// uses the OpenAI default.
func NewOpenAIClient(name, apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (c *OpenAIClient) Name() string { return c.name }

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	oreq := openai.ChatCompletionRequest{
		Model:     modelOr(req, c.model),
		Messages:  openAIMessages(req),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		// a zero temperature is dropped by omitempty
		oreq.Temperature = float32(*req.Temperature)
		if oreq.Temperature == 0 {
			oreq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if req.JSON {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: c.name, Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Model:    resp.Model,
		Provider: c.name,
		Duration: time.Since(start),
	}, nil
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: c.name, Message: apiErr.Message, Code: apiErr.HTTPStatusCode}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: c.name, Message: reqErr.Error(), Code: reqErr.HTTPStatusCode}
	}
	return fmt.Errorf("%s: chat completion failed: %w", c.name, err)
}

func openAIMessages(req CompletionRequest) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}

		if m.Image == nil {
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role: role,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    m.Image.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		})
	}
	return out
}
