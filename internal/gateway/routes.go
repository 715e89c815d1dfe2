package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/store"
)

const (
	defaultJournalLimit = 20
	rpcTimeout          = 10 * time.Second
)

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	protect := func(h http.HandlerFunc) http.HandlerFunc { return requireAuth(h, s.auth) }

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /nlp", protect(limitBody(s.handleTurn, s.cfg.MaxBodyBytes)))
	mux.HandleFunc("POST /map", protect(limitBody(s.handleMap, s.cfg.MaxBodyBytes)))
	mux.HandleFunc("GET /sessions", protect(s.handleSessionList))
	mux.HandleFunc("GET /sessions/{id}", protect(s.handleSessionGet))
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("session.list", s.rpcSessionList)
	s.Handle("session.get", s.rpcSessionGet)
	s.Handle("journal.list", s.rpcJournalList)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	rc.Respond(s.health(ctx))
}

func (s *Server) rpcSessionList(rc *RequestContext) {
	rc.Respond(map[string]any{"sessions": s.sessions.List()})
}

type entityParams struct {
	EntityID *domain.EntityID `json:"entityId"`
	Limit    int              `json:"limit"`
}

func (s *Server) rpcSessionGet(rc *RequestContext) {
	var p entityParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.EntityID == nil {
		rc.RespondError("invalid_params", "entityId is required")
		return
	}
	sess, err := s.sessions.Get(*p.EntityID)
	if errors.Is(err, session.ErrNotRegistered) {
		rc.RespondError("not_found", err.Error())
		return
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(sess)
}

func (s *Server) rpcJournalList(rc *RequestContext) {
	if s.journal == nil {
		rc.RespondError("unavailable", "journal is disabled")
		return
	}
	var p entityParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Limit <= 0 {
		p.Limit = defaultJournalLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	var (
		recs []store.TurnRecord
		err  error
	)
	if p.EntityID != nil {
		recs, err = s.journal.ListByEntity(ctx, *p.EntityID, p.Limit)
	} else {
		recs, err = s.journal.Recent(ctx, p.Limit)
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"turns": recs})
}
