package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/llm"
	"github.com/soyeahso/forager/internal/sanitize"
	"github.com/soyeahso/forager/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replies with the given contents in order and records requests.
func scriptedClient(replies ...string) (*llm.MockClient, *[]llm.CompletionRequest) {
	var reqs []llm.CompletionRequest
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			i := len(reqs)
			reqs = append(reqs, req)
			if i >= len(replies) {
				return nil, errors.New("no more replies")
			}
			return &llm.CompletionResponse{
				Content: replies[i],
				Model:   "mock-model",
				Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}
	return mock, &reqs
}

func testCollaborator(client llm.Client, retries int) *LLMCollaborator {
	temp := 0.0
	return NewLLMCollaborator(client, CollaboratorConfig{
		Model:         "openai/gpt-4.1-mini",
		MaxTokens:     8192,
		Temperature:   &temp,
		OutputRetries: retries,
	}, silentLog())
}

const gatherReply = `{"reasoning":"food here","eatCurrentFoodSupply":false,"next_action":"GatherBehavior"}`

func TestCollaborator_FirstTurn(t *testing.T) {
	client, reqs := scriptedClient(gatherReply)
	c := testCollaborator(client, 1)

	res, err := c.Invoke(context.Background(), InvokeRequest{
		EntityID:     1,
		Instructions: "survive",
		Payload:      `{"health":100}`,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionGather, res.Action.NextAction)
	assert.Equal(t, "mock-model", res.Model)

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, "survive", req.System)
	assert.True(t, req.JSON)
	assert.Equal(t, 8192, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, `{"health":100}`, req.Messages[0].Content)
	assert.Nil(t, req.Messages[0].Image)

	require.Len(t, res.RawHistory, 3)
	assert.Equal(t, domain.KindSystemPrompt, res.RawHistory[0].Parts[0].Kind)
	assert.Equal(t, domain.KindUserPrompt, res.RawHistory[0].Parts[1].Kind)
	assert.Equal(t, domain.KindToolCall, res.RawHistory[1].Parts[0].Kind)
	assert.Equal(t, domain.KindToolReturn, res.RawHistory[2].Parts[0].Kind)

	h := sanitize.History(res.RawHistory)
	require.NoError(t, schema.ValidateHistory(h))
	assert.Equal(t, domain.ToolCallPart("final_result", map[string]any{
		"reasoning":            "food here",
		"eatCurrentFoodSupply": false,
		"next_action":          "GatherBehavior",
	}), h[1].Parts[0])
	assert.Equal(t, domain.ToolReturnPart("final_result", "Final result processed."), h[2].Parts[0])
}

func TestCollaborator_Attachment(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	client, reqs := scriptedClient(gatherReply)
	c := testCollaborator(client, 0)

	res, err := c.Invoke(context.Background(), InvokeRequest{Instructions: "survive", Payload: "{}", Attachment: png})
	require.NoError(t, err)

	img := (*reqs)[0].Messages[0].Image
	require.NotNil(t, img)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MediaType)

	h := sanitize.History(res.RawHistory)
	require.NoError(t, schema.ValidateHistory(h))
	assert.Equal(t, domain.AttachmentPart(domain.KindUserPrompt), h[0].Parts[1])
}

func TestCollaborator_SecondTurnRendersHistory(t *testing.T) {
	client, reqs := scriptedClient(gatherReply, `{"reasoning":"tired","eatCurrentFoodSupply":true,"next_action":"RestBehavior"}`)
	c := testCollaborator(client, 0)
	ctx := context.Background()

	first, err := c.Invoke(ctx, InvokeRequest{Instructions: "survive", Payload: `{"turn":1}`, Attachment: []byte{1}})
	require.NoError(t, err)
	history := sanitize.History(first.RawHistory)

	second, err := c.Invoke(ctx, InvokeRequest{Instructions: "survive", History: history, Payload: `{"turn":2}`})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRest, second.Action.NextAction)

	msgs := (*reqs)[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.AttachmentMarker, msgs[0].Content)
	assert.NotContains(t, msgs[0].Content, "survive")
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.JSONEq(t, gatherReply, msgs[1].Content)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	assert.Equal(t, "Final result processed.\n{\"turn\":2}", msgs[2].Content)

	// the second turn's raw history starts with the first turn, and carries
	// no system prompt of its own
	require.Len(t, second.RawHistory, 6)
	assert.Equal(t, []domain.RawPart{{Kind: domain.KindUserPrompt, Content: `{"turn":2}`}}, second.RawHistory[3].Parts)
	assert.Equal(t, history, sanitize.History(second.RawHistory[:3]))
}

func TestCollaborator_RetriesInvalidReply(t *testing.T) {
	client, reqs := scriptedClient(`{"reasoning":"hm","eatCurrentFoodSupply":false,"next_action":"DanceBehavior"}`, gatherReply)
	c := testCollaborator(client, 1)

	res, err := c.Invoke(context.Background(), InvokeRequest{Instructions: "survive", Payload: "{}"})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionGather, res.Action.NextAction)
	assert.Equal(t, llm.Usage{InputTokens: 20, OutputTokens: 10}, res.Usage)

	require.Len(t, *reqs, 2)
	retry := (*reqs)[1].Messages
	require.Len(t, retry, 3)
	assert.Equal(t, llm.RoleAssistant, retry[1].Role)
	assert.Contains(t, retry[2].Content, "Validation feedback")
	assert.Contains(t, retry[2].Content, "DanceBehavior")

	h := sanitize.History(res.RawHistory)
	require.NoError(t, schema.ValidateHistory(h))
	require.Len(t, h, 5)
	assert.Equal(t, domain.KindRetryPrompt, h[2].Parts[0].Kind)
}

func TestCollaborator_RetriesExhausted(t *testing.T) {
	client, reqs := scriptedClient("not json", "still not json")
	c := testCollaborator(client, 1)

	_, err := c.Invoke(context.Background(), InvokeRequest{Payload: "{}"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorFailure)
	assert.ErrorIs(t, err, schema.ErrSchemaMismatch)
	assert.Len(t, *reqs, 2)
}

func TestCollaborator_ClientError(t *testing.T) {
	provErr := &llm.ProviderError{Provider: "openrouter", Message: "overloaded", Code: 503}
	client := &llm.MockClient{
		ProviderName: "openrouter",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, provErr
		},
	}
	c := testCollaborator(client, 3)

	_, err := c.Invoke(context.Background(), InvokeRequest{Payload: "{}"})
	require.Error(t, err)

	var ce *CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "openrouter", ce.Provider)

	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 503, pe.Code)
}

func TestLoadInstructions(t *testing.T) {
	s, err := LoadInstructions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInstructions, s)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  be brave\n"), 0o600))
	s, err = LoadInstructions(path)
	require.NoError(t, err)
	assert.Equal(t, "be brave", s)

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	_, err = LoadInstructions(path)
	assert.Error(t, err)

	_, err = LoadInstructions(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
