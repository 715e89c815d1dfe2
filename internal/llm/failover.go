package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/forager/internal/logging"
)

// FailoverClient tries the primary provider first, then each fallback in
// order on retryable errors (401, 403, 429, 5xx).
type FailoverClient struct {
	registry  *Registry
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a failover client over the registry.
func NewFailoverClient(registry *Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the primary provider name.
func (f *FailoverClient) Name() string { return f.primary }

// Complete tries the primary provider, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	providers := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for _, name := range providers {
		client, ok := f.registry.Lookup(name)
		if !ok {
			f.log.Debug().Str("provider", name).Msg("no provider, skipping")
			lastErr = fmt.Errorf("no LLM provider for %q", name)
			continue
		}

		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if isRetryable(err) {
			f.log.Warn().Str("provider", name).Err(err).Msg("retryable error, trying next provider")
			continue
		}

		// Non-retryable error, don't try more providers
		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 504, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
