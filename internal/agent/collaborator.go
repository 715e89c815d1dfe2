package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/llm"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/soyeahso/forager/internal/schema"
)

// ErrCollaboratorFailure is matched by every error from the reasoning call.
var ErrCollaboratorFailure = errors.New("collaborator failure")

// CollaboratorError is a failed reasoning call.
type CollaboratorError struct {
	Provider string
	Err      error
}

func (e *CollaboratorError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("collaborator: %v", e.Err)
	}
	return fmt.Sprintf("collaborator %s: %v", e.Provider, e.Err)
}

func (e *CollaboratorError) Unwrap() []error { return []error{ErrCollaboratorFailure, e.Err} }

const (
	finalResultTool   = "final_result"
	finalResultReturn = "Final result processed."
)

// InvokeRequest is one turn's input to the collaborator.
type InvokeRequest struct {
	EntityID     domain.EntityID
	Instructions string
	History      []domain.Message
	Payload      string
	Attachment   []byte
}

// InvokeResult is the collaborator's decision and the full raw history of
// the conversation including this turn.
type InvokeResult struct {
	Action     domain.StructuredAction
	RawHistory []domain.RawMessage
	Model      string
	Usage      llm.Usage
}

// Collaborator produces a structured action for one turn.
type Collaborator interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}

// CollaboratorConfig configures an LLMCollaborator.
type CollaboratorConfig struct {
	Model         string
	MaxTokens     int
	Temperature   *float64
	OutputRetries int
	MediaType     string
	// CallTimeout bounds each request to the provider. Zero means no limit.
	CallTimeout   time.Duration
}

// LLMCollaborator asks an LLM client for a JSON action and re-prompts with
// the validation error when the reply does not match the action schema.
type LLMCollaborator struct {
	cfg    CollaboratorConfig
	client llm.Client
	log    *logging.Logger
}

// NewLLMCollaborator creates a collaborator over the given client.
func NewLLMCollaborator(client llm.Client, cfg CollaboratorConfig, log *logging.Logger) *LLMCollaborator {
	if cfg.MediaType == "" {
		cfg.MediaType = "image/png"
	}
	if cfg.OutputRetries < 0 {
		cfg.OutputRetries = 0
	}
	return &LLMCollaborator{cfg: cfg, client: client, log: log.Sub("collaborator")}
}

// Invoke runs one turn against the LLM.
func (c *LLMCollaborator) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	msgs := renderHistory(req.History)
	user := llm.Message{Role: llm.RoleUser, Content: req.Payload}
	if len(req.Attachment) > 0 {
		user.Image = &llm.Image{Data: req.Attachment, MediaType: c.cfg.MediaType}
	}
	msgs = appendMessage(msgs, user)

	raw := domain.RawHistory(req.History)
	raw = append(raw, c.requestMessage(req))

	var usage llm.Usage
	for attempt := 0; ; attempt++ {
		resp, err := c.complete(ctx, llm.CompletionRequest{
			Model:       c.cfg.Model,
			System:      req.Instructions,
			Messages:    msgs,
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
			JSON:        true,
		})
		if err != nil {
			return nil, &CollaboratorError{Provider: c.client.Name(), Err: err}
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		action, verr := schema.ValidateResponse([]byte(resp.Content))
		if verr == nil {
			args, err := actionArgs(action)
			if err != nil {
				return nil, &CollaboratorError{Provider: c.client.Name(), Err: err}
			}
			raw = append(raw,
				domain.RawMessage{Role: domain.RoleAssistant, Parts: []domain.RawPart{
					{Kind: domain.KindToolCall, ToolName: domain.StringPtr(finalResultTool), Args: args},
				}},
				domain.RawMessage{Role: domain.RoleTool, Parts: []domain.RawPart{
					{Kind: domain.KindToolReturn, ToolName: domain.StringPtr(finalResultTool), Content: finalResultReturn},
				}},
			)
			return &InvokeResult{Action: action, RawHistory: raw, Model: resp.Model, Usage: usage}, nil
		}

		if attempt >= c.cfg.OutputRetries {
			return nil, &CollaboratorError{
				Provider: c.client.Name(),
				Err:      fmt.Errorf("exceeded %d output retries: %w", c.cfg.OutputRetries, verr),
			}
		}

		c.log.Warn().
			Str("entity", req.EntityID.String()).
			Int("attempt", attempt+1).
			Err(verr).
			Msg("reply does not match the action schema, retrying")

		feedback := retryPrompt(verr)
		msgs = appendMessage(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		msgs = appendMessage(msgs, llm.Message{Role: llm.RoleUser, Content: feedback})
		raw = append(raw,
			domain.RawMessage{Role: domain.RoleAssistant, Parts: []domain.RawPart{
				{Kind: domain.KindText, Content: resp.Content},
			}},
			domain.RawMessage{Role: domain.RoleUser, Parts: []domain.RawPart{
				{Kind: domain.KindRetryPrompt, Content: feedback},
			}},
		)
	}
}

func (c *LLMCollaborator) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	return c.client.Complete(ctx, req)
}

// requestMessage is the raw form of this turn's prompt. The system prompt is
// only part of the first request; an attached image makes the user prompt a
// mixed list of text and binary content.
func (c *LLMCollaborator) requestMessage(req InvokeRequest) domain.RawMessage {
	msg := domain.RawMessage{Role: domain.RoleUser}
	if len(req.History) == 0 {
		msg.Parts = append(msg.Parts, domain.RawPart{Kind: domain.KindSystemPrompt, Content: req.Instructions})
	}
	var content any = req.Payload
	if len(req.Attachment) > 0 {
		content = []any{req.Payload, domain.BinaryContent{Data: req.Attachment, MediaType: c.cfg.MediaType}}
	}
	msg.Parts = append(msg.Parts, domain.RawPart{Kind: domain.KindUserPrompt, Content: content})
	return msg
}

func retryPrompt(err error) string {
	return fmt.Sprintf("Validation feedback: %v\n\nReply again with only the JSON object in the required shape.", err)
}

func actionArgs(a domain.StructuredAction) (map[string]any, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// renderHistory turns a sanitized history into provider messages. System
// prompt parts are dropped since instructions travel separately; tool
// results and requests become user turns.
func renderHistory(history []domain.Message) []llm.Message {
	var out []llm.Message
	for _, m := range history {
		var lines []string
		for _, p := range m.Parts {
			if s := renderPart(p); s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) == 0 {
			continue
		}
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = appendMessage(out, llm.Message{Role: role, Content: strings.Join(lines, "\n")})
	}
	return out
}

func renderPart(p domain.Part) string {
	switch p.Type {
	case domain.PartText:
		if p.Kind == domain.KindSystemPrompt {
			return ""
		}
		return p.Content
	case domain.PartToolCall:
		data, err := json.Marshal(p.Arguments)
		if err != nil {
			return ""
		}
		return string(data)
	case domain.PartToolReturn:
		return p.Result
	case domain.PartAttachment:
		return p.Marker
	}
	return ""
}

// appendMessage merges consecutive messages of the same role, since some
// providers require strictly alternating turns. A message holds at most one
// image.
func appendMessage(msgs []llm.Message, m llm.Message) []llm.Message {
	if n := len(msgs); n > 0 && msgs[n-1].Role == m.Role && msgs[n-1].Image == nil {
		msgs[n-1].Content += "\n" + m.Content
		msgs[n-1].Image = m.Image
		return msgs
	}
	return append(msgs, m)
}
