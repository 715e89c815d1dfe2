package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API. The SDK client is created on first
// use; a failed construction is retried by the next call.
type GeminiClient struct {
	name   string
	model  string
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(name, apiKey, model string) *GeminiClient {
	return &GeminiClient{name: name, model: model, apiKey: apiKey}
}

func (c *GeminiClient) Name() string { return c.name }

func (c *GeminiClient) sdk() (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to initialize client: %w", c.name, err)
	}
	c.client = client
	return client, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	client, err := c.sdk()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	model := modelOr(req, c.model)
	resp, err := client.Models.GenerateContent(ctx, model, geminiContents(req.Messages), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: c.name, Message: apiErr.Message, Code: apiErr.Code}
		}
		return nil, fmt.Errorf("%s: generate content failed: %w", c.name, err)
	}

	out := &CompletionResponse{
		Content:  resp.Text(),
		Model:    model,
		Provider: c.name,
		Duration: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	return out, nil
}

func geminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		if m.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(m.Image.Data, m.Image.MediaType))
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}
