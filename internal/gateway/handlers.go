package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/forager/internal/agent"
	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/hooks"
	"github.com/soyeahso/forager/internal/schema"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/version"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the RPC handler fills in the rest.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	Sessions     int    `json:"sessions,omitempty"`
	Observers    int    `json:"observers,omitempty"`
	Turns        int    `json:"turns,omitempty"`
	HookHandlers int    `json:"hookHandlers,omitempty"`
	HookQueue    int    `json:"hookQueue,omitempty"`
	UptimeMS     int64  `json:"uptimeMs,omitempty"`
}

// MapAck acknowledges a map upload.
type MapAck struct {
	Message string          `json:"message"`
	AgentID domain.EntityID `json:"agent_id"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleTurn runs one turn and answers with the structured action.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	reqID := agent.RequestID(r.Context())

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	req, err := schema.ValidateTurnRequest(body)
	if err != nil {
		s.log.Debug().Err(err).Str("requestId", reqID).Msg("rejected turn request")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: reqID})
		return
	}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		if schema.IsClientError(err) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: reqID})
			return
		}
		// The runner has already logged the failure with its context.
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", RequestID: reqID})
		return
	}
	writeJSON(w, http.StatusOK, res.Action)
}

// handleMap acknowledges a map image upload. The image is not kept.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	reqID := agent.RequestID(r.Context())

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	up, err := schema.ValidateMapRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: reqID})
		return
	}

	s.log.Info().
		Str("entity", up.AgentID.String()).
		Int("bytes", len(up.Image)).
		Str("requestId", reqID).
		Msg("map received")
	if s.hooks != nil {
		s.hooks.EmitAsync(context.WithoutCancel(r.Context()), hooks.EventMapReceived, map[string]any{
			"entityId": int64(up.AgentID),
			"bytes":    len(up.Image),
		})
	}
	writeJSON(w, http.StatusOK, MapAck{Message: "Received map data", AgentID: up.AgentID})
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseEntityID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid entity id"})
		return
	}
	sess, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrNotRegistered) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// readBody reads the request body, answering 413 when it exceeds the
// configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", RequestID: agent.RequestID(r.Context())})
		return nil, false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "reading body: " + err.Error(), RequestID: agent.RequestID(r.Context())})
	return nil, false
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an RPC request frame from an observer.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params unmarshals the request params into target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

func (s *Server) health(ctx context.Context) HealthResponse {
	var uptime int64
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Milliseconds()
	}
	h := HealthResponse{
		Status:    "ok",
		Version:   version.Version,
		Sessions:  s.sessions.Len(),
		Observers: s.clients.Count(),
		UptimeMS:  uptime,
	}
	if s.hooks != nil {
		for _, ev := range hooks.AllEvents {
			h.HookHandlers += s.hooks.Count(ev)
		}
		h.HookQueue = s.hooks.Pending()
	}
	if s.journal != nil {
		n, err := s.journal.Count(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("counting journaled turns")
		}
		h.Turns = n
	}
	return h
}
