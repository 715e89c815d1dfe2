package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/forager/internal/domain"
)

// Turn outcomes recorded in the journal.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TurnRecord is one journaled turn. History is the sanitized history that
// was committed, or nil for a failed turn.
type TurnRecord struct {
	ID           string                   `json:"id"`
	EntityID     domain.EntityID          `json:"entityId"`
	RequestID    string                   `json:"requestId,omitempty"`
	Status       string                   `json:"status"`
	Action       *domain.StructuredAction `json:"action,omitempty"`
	History      []domain.Message         `json:"history,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Model        string                   `json:"model,omitempty"`
	InputTokens  int                      `json:"inputTokens,omitempty"`
	OutputTokens int                      `json:"outputTokens,omitempty"`
	Duration     time.Duration            `json:"duration"`
	CreatedAt    time.Time                `json:"createdAt"`
}

// Journal is an append-only record of turns for diagnosis. It is never read
// back into the session registry.
type Journal struct {
	db *DB
}

// NewJournal creates a journal over the given database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// Record appends a turn. An empty ID or CreatedAt is filled in.
func (j *Journal) Record(ctx context.Context, rec TurnRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	action, err := nullableJSON(rec.Action != nil, rec.Action)
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}
	history, err := nullableJSON(rec.History != nil, rec.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	_, err = j.db.sql.ExecContext(ctx,
		`INSERT INTO turns (id, entity_id, request_id, status, action, history, error, duration_ms, created_at, model, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int64(rec.EntityID), rec.RequestID, rec.Status, action, history, rec.Error,
		rec.Duration.Milliseconds(), rec.CreatedAt.UTC().Format(timeLayout),
		rec.Model, rec.InputTokens, rec.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("recording turn for entity %s: %w", rec.EntityID, err)
	}
	return nil
}

// ListByEntity returns the most recent turns of one entity, newest first.
// A limit of zero or less returns every turn.
func (j *Journal) ListByEntity(ctx context.Context, id domain.EntityID, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT id, entity_id, request_id, status, action, history, error, duration_ms, created_at, model, input_tokens, output_tokens
		 FROM turns WHERE entity_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		int64(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// Recent returns the most recent turns across all entities, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT id, entity_id, request_id, status, action, history, error, duration_ms, created_at, model, input_tokens, output_tokens
		 FROM turns ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// Count returns the number of journaled turns.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return n, nil
}

func scanTurns(rows *sql.Rows) ([]TurnRecord, error) {
	var out []TurnRecord
	for rows.Next() {
		var (
			rec             TurnRecord
			entity          int64
			action, history sql.NullString
			durationMS      int64
			createdAt       string
		)
		if err := rows.Scan(
			&rec.ID, &entity, &rec.RequestID, &rec.Status, &action, &history, &rec.Error,
			&durationMS, &createdAt, &rec.Model, &rec.InputTokens, &rec.OutputTokens,
		); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		rec.EntityID = domain.EntityID(entity)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)

		if action.Valid {
			rec.Action = &domain.StructuredAction{}
			if err := json.Unmarshal([]byte(action.String), rec.Action); err != nil {
				return nil, fmt.Errorf("decoding action of turn %s: %w", rec.ID, err)
			}
		}
		if history.Valid {
			if err := json.Unmarshal([]byte(history.String), &rec.History); err != nil {
				return nil, fmt.Errorf("decoding history of turn %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableJSON(present bool, v any) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
