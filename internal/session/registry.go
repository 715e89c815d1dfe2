// Package session holds the process-wide registry of per-entity
// conversation state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/forager/internal/domain"
)

// ErrNotRegistered is returned for an entity id the registry has never seen.
var ErrNotRegistered = errors.New("entity not registered")

// TurnFunc computes an entity's next history from its current session. It
// runs while the entity's turn lock is held.
type TurnFunc func(ctx context.Context, sess domain.Session) ([]domain.Message, error)

// Summary is a lightweight view of one session.
type Summary struct {
	EntityID   domain.EntityID `json:"entityId"`
	HistoryLen int             `json:"historyLen"`
	Turns      int             `json:"turns"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// entry is one entity's session. turn is a one-slot semaphore held for the
// whole of a turn or a replace; mu only guards reads and the final swap.
type entry struct {
	turn chan struct{}
	mu   sync.RWMutex
	sess domain.Session
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() { <-e.turn }

func (e *entry) snapshot() domain.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess.Clone()
}

func (e *entry) commit(history []domain.Message, at time.Time, countTurn bool) {
	h := domain.CloneHistory(history)
	if h == nil {
		h = []domain.Message{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.History = h
	e.sess.UpdatedAt = at
	if countTurn {
		e.sess.Turns++
	}
}

// Registry maps entity ids to sessions. The registry lock is held only for
// lookup and insert; turns for different entities never contend.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.EntityID]*entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.EntityID]*entry),
		now:     time.Now,
	}
}

// Register creates a session with the given instructions if none exists.
// It reports whether a new session was created; an existing session is left
// untouched, including its instructions.
func (r *Registry) Register(id domain.EntityID, instructions string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return false
	}
	now := r.now()
	r.entries[id] = &entry{
		turn: make(chan struct{}, 1),
		sess: domain.Session{
			EntityID:     id,
			Instructions: instructions,
			History:      []domain.Message{},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	return true
}

func (r *Registry) lookup(id domain.EntityID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return e, nil
}

// Get returns a copy of the entity's session.
func (r *Registry) Get(id domain.EntityID) (domain.Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return domain.Session{}, err
	}
	return e.snapshot(), nil
}

// ReadHistory returns a copy of the entity's last committed history.
func (r *Registry) ReadHistory(id domain.EntityID) ([]domain.Message, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot().History, nil
}

// ReplaceHistory swaps the entity's history. It waits for any turn in
// progress for the same entity.
func (r *Registry) ReplaceHistory(ctx context.Context, id domain.EntityID, history []domain.Message) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	e.commit(history, r.now(), false)
	return nil
}

// Turn runs fn under the entity's turn lock and stores the history it
// returns. If fn fails, panics, or ctx is done before the commit, the stored
// session is unchanged.
func (r *Registry) Turn(ctx context.Context, id domain.EntityID, fn TurnFunc) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	next, err := fn(ctx, e.snapshot())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.commit(next, r.now(), true)
	return nil
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns a summary of every session, ordered by entity id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		out = append(out, Summary{
			EntityID:   e.sess.EntityID,
			HistoryLen: len(e.sess.History),
			Turns:      e.sess.Turns,
			UpdatedAt:  e.sess.UpdatedAt,
		})
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}
