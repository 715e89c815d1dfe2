package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if got != nil {
			require.NoError(t, json.Unmarshal(raw, got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const openAIOK = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "openai/gpt-4.1-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"next_action\":\"GatherBehavior\"}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
}`

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := captureServer(t, http.StatusOK, openAIOK, &got)

	temp := 0.0
	c := NewOpenAIClient("openrouter", "key", srv.URL, "openai/gpt-4.1-mini")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:      "be a forager",
		Messages:    []Message{{Role: RoleUser, Content: "state"}},
		Temperature: &temp,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"next_action":"GatherBehavior"}`, resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 7}, resp.Usage)
	assert.Equal(t, "openrouter", resp.Provider)

	assert.Equal(t, "openai/gpt-4.1-mini", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.NotZero(t, got["temperature"], "zero temperature must survive omitempty")
}

func TestOpenAIClient_ImageUsesMultiContent(t *testing.T) {
	var got map[string]any
	srv := captureServer(t, http.StatusOK, openAIOK, &got)

	c := NewOpenAIClient("openrouter", "key", srv.URL, "m")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{
			Role:    RoleUser,
			Content: "where am I?",
			Image:   &Image{Data: []byte{0xde, 0xad, 0xbe, 0xef}, MediaType: "image/png"},
		}},
	})
	require.NoError(t, err)

	msg := got["messages"].([]any)[0].(map[string]any)
	parts := msg["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,3q2+7w==", img["image_url"].(map[string]any)["url"])
}

func TestOpenAIClient_APIErrorBecomesProviderError(t *testing.T) {
	srv := captureServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"rate limited","type":"rate_limit_error"}}`, nil)

	c := NewOpenAIClient("openrouter", "key", srv.URL, "m")
	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.Code)
	assert.True(t, isRetryable(err))
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := captureServer(t, http.StatusOK, `{"id":"x","choices":[]}`, nil)

	c := NewOpenAIClient("openrouter", "key", srv.URL, "m")
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

const anthropicOK = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "{\"next_action\":\"RestBehavior\"}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 5, "output_tokens": 9}
}`

func TestAnthropicClient_Complete(t *testing.T) {
	var got map[string]any
	srv := captureServer(t, http.StatusOK, anthropicOK, &got)

	c := NewAnthropicClient("anthropic", "key", srv.URL, "claude-sonnet-4-5")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System: "be a forager",
		Messages: []Message{
			{Role: RoleUser, Content: "state", Image: &Image{Data: []byte("png"), MediaType: "image/png"}},
		},
		JSON: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"next_action":"RestBehavior"}`, resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 5, OutputTokens: 9}, resp.Usage)

	assert.EqualValues(t, anthropicDefaultMaxTokens, got["max_tokens"])
	system := got["system"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, system, "be a forager")
	assert.Contains(t, system, "JSON object")

	content := got["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "image", content[1].(map[string]any)["type"])
}

func TestAnthropicClient_APIErrorBecomesProviderError(t *testing.T) {
	srv := captureServer(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)

	c := NewAnthropicClient("anthropic", "key", srv.URL, "claude-sonnet-4-5")
	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.Code)
	assert.False(t, isRetryable(err))
}

func TestGeminiClient_InitRetriesAfterFailure(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	c := NewGeminiClient("gemini", "", "gemini-2.0-flash")
	_, err := c.sdk()
	require.Error(t, err)
	assert.Nil(t, c.client)

	c.apiKey = "test-key"
	first, err := c.sdk()
	require.NoError(t, err)
	second, err := c.sdk()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents([]Message{
		{Role: RoleUser, Content: "look", Image: &Image{Data: []byte("png"), MediaType: "image/png"}},
		{Role: RoleAssistant, Content: "ok"},
	})
	require.Len(t, contents, 2)

	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "look", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)

	assert.Equal(t, "model", contents[1].Role)
	assert.Len(t, contents[1].Parts, 1)
}
