package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	name   string
	model  string
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic client. An empty baseURL uses the
// SDK default.
func NewAnthropicClient(name, apiKey, baseURL, model string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		name:   name,
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

func (c *AnthropicClient) Name() string { return c.name }

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelOr(req, c.model)),
		MaxTokens: maxTokens,
		Messages:  anthropicMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: c.name, Message: apiErr.Error(), Code: apiErr.StatusCode}
		}
		return nil, fmt.Errorf("%s: messages request failed: %w", c.name, err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		Model:    string(msg.Model),
		Provider: c.name,
		Duration: time.Since(start),
	}, nil
}

func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
		if m.Image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(m.Image.MediaType, base64.StdEncoding.EncodeToString(m.Image.Data)))
		}
		out = append(out, anthropic.NewUserMessage(blocks...))
	}
	return out
}
