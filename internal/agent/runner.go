// Package agent runs turns: it resolves an entity's session, invokes the
// reasoning collaborator, and commits the sanitized history.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/hooks"
	"github.com/soyeahso/forager/internal/llm"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/soyeahso/forager/internal/sanitize"
	"github.com/soyeahso/forager/internal/schema"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/store"
)

// Journal records finished turns.
type Journal interface {
	Record(ctx context.Context, rec store.TurnRecord) error
}

// RunnerConfig configures the turn runner.
type RunnerConfig struct {
	// Instructions seed every newly registered session.
	Instructions string
	// TurnTimeout bounds one turn including the wait for the entity's lock.
	// Zero means no limit beyond the caller's context.
	TurnTimeout time.Duration
}

// RunResult is the outcome of one turn.
type RunResult struct {
	EntityID   domain.EntityID         `json:"entityId"`
	Action     domain.StructuredAction `json:"action"`
	HistoryLen int                     `json:"historyLen"`
	Registered bool                    `json:"registered"`
	Model      string                  `json:"model,omitempty"`
	Usage      llm.Usage               `json:"usage"`
	Duration   time.Duration           `json:"duration"`
}

// Runner executes turns against one process-wide session registry.
type Runner struct {
	cfg      RunnerConfig
	sessions *session.Registry
	collab   Collaborator
	hooks    *hooks.Manager
	journal  Journal
	log      *logging.Logger
}

// RunnerOption configures optional runner dependencies.
type RunnerOption func(*Runner)

// WithHooks emits turn lifecycle events on hm.
func WithHooks(hm *hooks.Manager) RunnerOption {
	return func(r *Runner) { r.hooks = hm }
}

// WithJournal records every finished turn in j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// NewRunner creates a turn runner.
func NewRunner(cfg RunnerConfig, sessions *session.Registry, collab Collaborator, log *logging.Logger, opts ...RunnerOption) *Runner {
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	r := &Runner{
		cfg:      cfg,
		sessions: sessions,
		collab:   collab,
		log:      log.Sub("agent"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sessions returns the registry the runner commits to.
func (r *Runner) Sessions() *session.Registry { return r.sessions }

// Run processes one turn. The entity is registered on first use. The read
// of the history, the collaborator call, sanitization, validation and the
// commit all happen under the entity's turn lock; on any failure the stored
// session is left as it was.
func (r *Runner) Run(ctx context.Context, req domain.TurnRequest) (*RunResult, error) {
	start := time.Now()
	id := req.AgentID
	log := r.log.With("entity", id.String())
	if reqID := RequestID(ctx); reqID != "" {
		log = log.With("requestId", reqID)
	}

	registered := r.sessions.Register(id, r.cfg.Instructions)
	if registered {
		log.Info().Msg("session registered")
		r.emit(ctx, hooks.EventSessionRegistered, map[string]any{"entityId": int64(id)})
	}

	payload, err := json.Marshal(req.State)
	if err != nil {
		return nil, fmt.Errorf("encoding world state: %w", err)
	}

	if r.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TurnTimeout)
		defer cancel()
	}

	ev := log.Info().Int("stateFields", len(req.State))
	if req.HasAttachment() {
		ev = ev.Int("attachmentBytes", len(req.Attachment))
	}
	ev.Msg("turn started")
	r.emit(ctx, hooks.EventTurnStarted, map[string]any{"entityId": int64(id)})

	var (
		result  *InvokeResult
		history []domain.Message
	)
	err = r.sessions.Turn(ctx, id, func(ctx context.Context, sess domain.Session) ([]domain.Message, error) {
		res, err := r.collab.Invoke(ctx, InvokeRequest{
			EntityID:     id,
			Instructions: sess.Instructions,
			History:      sess.History,
			Payload:      string(payload),
			Attachment:   req.Attachment,
		})
		if err != nil {
			if !errors.Is(err, ErrCollaboratorFailure) {
				err = &CollaboratorError{Err: err}
			}
			return nil, err
		}

		sanitized := sanitize.History(res.RawHistory)
		if err := schema.ValidateHistory(sanitized); err != nil {
			log.Error().
				Err(err).
				Str("shape", Shape(res.RawHistory)).
				Msg("sanitized history failed validation")
			return nil, fmt.Errorf("validating sanitized history: %w", err)
		}
		result, history = res, sanitized
		return sanitized, nil
	})
	if err != nil {
		r.fail(ctx, log, req, err, time.Since(start))
		return nil, err
	}

	out := &RunResult{
		EntityID:   id,
		Action:     result.Action,
		HistoryLen: len(history),
		Registered: registered,
		Model:      result.Model,
		Usage:      result.Usage,
		Duration:   time.Since(start),
	}

	log.Info().
		Str("action", string(out.Action.NextAction)).
		Int("historyLen", out.HistoryLen).
		Str("model", out.Model).
		Int("inputTokens", out.Usage.InputTokens).
		Int("outputTokens", out.Usage.OutputTokens).
		Dur("duration", out.Duration).
		Msg("turn completed")

	r.emit(ctx, hooks.EventTurnCompleted, map[string]any{
		"entityId":   int64(id),
		"action":     out.Action,
		"historyLen": out.HistoryLen,
		"durationMs": out.Duration.Milliseconds(),
	})
	r.record(ctx, log, store.TurnRecord{
		EntityID:     id,
		RequestID:    RequestID(ctx),
		Status:       store.StatusOK,
		Action:       &out.Action,
		History:      history,
		Model:        out.Model,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		Duration:     out.Duration,
	})
	return out, nil
}

func (r *Runner) fail(ctx context.Context, log *logging.Logger, req domain.TurnRequest, err error, d time.Duration) {
	ev := log.Error().Err(err).Dur("duration", d)
	if req.HasAttachment() {
		ev = ev.Int("attachmentBytes", len(req.Attachment))
	}
	ev.Msg("turn failed")

	r.emit(ctx, hooks.EventTurnFailed, map[string]any{
		"entityId": int64(req.AgentID),
		"error":    err.Error(),
	})
	r.record(ctx, log, store.TurnRecord{
		EntityID:  req.AgentID,
		RequestID: RequestID(ctx),
		Status:    store.StatusFailed,
		Error:     err.Error(),
		Duration:  d,
	})
}

func (r *Runner) emit(ctx context.Context, event hooks.Event, data map[string]any) {
	if r.hooks != nil {
		r.hooks.EmitAsync(context.WithoutCancel(ctx), event, data)
	}
}

func (r *Runner) record(ctx context.Context, log *logging.Logger, rec store.TurnRecord) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Msg("failed to journal turn")
	}
}

// Shape describes a raw history by role, part kind and content type, without
// any content, e.g. "user[system-prompt:string user-prompt:list] assistant[tool-call]".
func Shape(raw []domain.RawMessage) string {
	msgs := make([]string, len(raw))
	for i, m := range raw {
		parts := make([]string, len(m.Parts))
		for j, p := range m.Parts {
			parts[j] = p.Kind + contentType(p.Content)
		}
		msgs[i] = string(m.Role) + "[" + strings.Join(parts, " ") + "]"
	}
	return strings.Join(msgs, " ")
}

func contentType(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string:
		return ":string"
	case []any:
		return ":list"
	case []byte, domain.BinaryContent, *domain.BinaryContent:
		return ":binary"
	case map[string]any:
		return ":object"
	default:
		return fmt.Sprintf(":%T", v)
	}
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the transport's request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
