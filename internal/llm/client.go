// Package llm defines the completion client interface and its providers.
//
// Every provider is reached through its official Go SDK. Requests are single
// shot JSON-mode completions; the only non-text input is an optional image
// attached to a user message.
package llm

import (
	"context"
	"encoding/base64"
	"time"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Image is inline image data attached to a message.
type Image struct {
	Data      []byte
	MediaType string
}

// DataURL returns the image encoded as a data URL.
func (i *Image) DataURL() string {
	return "data:" + i.MediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Image   *Image `json:"-"`
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	JSON        bool      `json:"json,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all LLM providers must implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openrouter", "anthropic").
	Name() string
}

func modelOr(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}
