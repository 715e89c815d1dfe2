// Package hooks provides named handlers for turn and gateway lifecycle
// events.
package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/forager/internal/logging"
)

// Event names a lifecycle point.
type Event string

const (
	EventSessionRegistered Event = "session_registered"
	EventTurnStarted       Event = "turn_started"
	EventTurnCompleted     Event = "turn_completed"
	EventTurnFailed        Event = "turn_failed"
	EventMapReceived       Event = "map_received"
	EventGatewayStart      Event = "gateway_start"
	EventGatewayStop       Event = "gateway_stop"
)

// AllEvents lists all known hook events.
var AllEvents = []Event{
	EventSessionRegistered,
	EventTurnStarted,
	EventTurnCompleted,
	EventTurnFailed,
	EventMapReceived,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event Event          `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. A returned error is logged and does not
// stop later handlers.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	id      uint64
	name    string
	handler Handler
}

// asyncQueueSize bounds the events waiting for the async dispatcher.
const asyncQueueSize = 256

type queuedEvent struct {
	ctx      context.Context
	payload  Payload
	handlers []namedHandler
}

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]namedHandler
	nextID   uint64
	log      *logging.Logger

	qmu    sync.RWMutex
	queue  chan queuedEvent
	closed bool
	done   chan struct{}
}

// NewManager creates a hook manager and starts its async dispatcher.
func NewManager(log *logging.Logger) *Manager {
	m := &Manager{
		handlers: make(map[Event][]namedHandler),
		log:      log.Sub("hooks"),
		queue:    make(chan queuedEvent, asyncQueueSize),
		done:     make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// On registers a handler for the event and returns a function that removes
// exactly that registration.
func (m *Manager) On(event Event, name string, handler Handler) (off func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[event] = append(m.handlers[event], namedHandler{id: id, name: name, handler: handler})
	m.mu.Unlock()

	m.log.Debug().Str("event", string(event)).Str("handler", name).Msg("hook registered")
	return func() { m.remove(event, id) }
}

func (m *Manager) remove(event Event, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.id != id {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

func (m *Manager) snapshot(event Event) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	return handlers
}

// Emit calls every handler for the event in registration order.
func (m *Manager) Emit(ctx context.Context, event Event, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		m.call(ctx, h, payload)
	}
}

// EmitAsync queues the event and returns immediately. Queued events are
// dispatched one at a time in the order they were emitted, so handlers see
// the same order as with Emit. When the queue is full or the manager is
// closed the event is dropped.
func (m *Manager) EmitAsync(ctx context.Context, event Event, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	m.qmu.RLock()
	defer m.qmu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- queuedEvent{ctx: ctx, payload: Payload{Event: event, Data: data}, handlers: handlers}:
	default:
		m.log.Warn().Str("event", string(event)).Msg("hook queue full, event dropped")
	}
}

func (m *Manager) dispatch() {
	defer close(m.done)
	for ev := range m.queue {
		for _, h := range ev.handlers {
			m.call(ev.ctx, h, ev.payload)
		}
	}
}

// Close stops accepting async events and waits until the queued ones have
// been dispatched, or ctx is done.
func (m *Manager) Close(ctx context.Context) error {
	m.qmu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.qmu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued async events.
func (m *Manager) Pending() int { return len(m.queue) }

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", string(p.Event)).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event Event) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}
