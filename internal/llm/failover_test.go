package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingClient(name string, err error, calls *[]string) *MockClient {
	return &MockClient{
		ProviderName: name,
		CompleteFunc: func(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
			*calls = append(*calls, name)
			if err != nil {
				return nil, err
			}
			return &CompletionResponse{Content: "ok from " + name, Provider: name}, nil
		},
	}
}

func TestFailover_PrimarySucceeds(t *testing.T) {
	var calls []string
	reg := NewRegistry(silentLog())
	reg.Register("a", failingClient("a", nil, &calls))
	reg.Register("b", failingClient("b", nil, &calls))

	fc := NewFailoverClient(reg, "a", []string{"b"}, silentLog())
	resp, err := fc.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok from a", resp.Content)
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, "a", fc.Name())
}

func TestFailover_RetryableMovesOn(t *testing.T) {
	var calls []string
	reg := NewRegistry(silentLog())
	reg.Register("a", failingClient("a", &ProviderError{Provider: "a", Code: 429, Message: "slow down"}, &calls))
	reg.Register("b", failingClient("b", nil, &calls))

	fc := NewFailoverClient(reg, "a", []string{"missing", "b"}, silentLog())
	resp, err := fc.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok from b", resp.Content)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFailover_NonRetryableStops(t *testing.T) {
	var calls []string
	reg := NewRegistry(silentLog())
	reg.Register("a", failingClient("a", &ProviderError{Provider: "a", Code: 400, Message: "bad request"}, &calls))
	reg.Register("b", failingClient("b", nil, &calls))

	fc := NewFailoverClient(reg, "a", []string{"b"}, silentLog())
	_, err := fc.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.Code)
	assert.Equal(t, []string{"a"}, calls)
}

func TestFailover_AllFailReturnsLastError(t *testing.T) {
	var calls []string
	reg := NewRegistry(silentLog())
	reg.Register("a", failingClient("a", &ProviderError{Provider: "a", Code: 503, Message: "down"}, &calls))
	reg.Register("b", failingClient("b", errors.New("server overloaded"), &calls))

	fc := NewFailoverClient(reg, "a", []string{"b"}, silentLog())
	_, err := fc.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFailover_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	reg := NewRegistry(silentLog())
	reg.Register("a", &MockClient{
		ProviderName: "a",
		CompleteFunc: func(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
			calls = append(calls, "a")
			cancel()
			return nil, &ProviderError{Provider: "a", Code: 503, Message: "timeout"}
		},
	})
	reg.Register("b", failingClient("b", nil, &calls))

	fc := NewFailoverClient(reg, "a", []string{"b"}, silentLog())
	_, err := fc.Complete(ctx, CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"401", &ProviderError{Code: 401}, true},
		{"429", &ProviderError{Code: 429}, true},
		{"529", &ProviderError{Code: 529}, true},
		{"400", &ProviderError{Code: 400, Message: "bad"}, false},
		{"rate limit text", errors.New("Rate limit exceeded"), true},
		{"timeout text", errors.New("request timeout"), true},
		{"plain", errors.New("invalid json"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
