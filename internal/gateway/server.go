// Package gateway serves the turn and map endpoints over HTTP and pushes
// turn outcomes to WebSocket observers.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/forager/internal/agent"
	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/hooks"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/store"
	"github.com/soyeahso/forager/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

// TurnRunner runs one turn for an entity.
type TurnRunner interface {
	Run(ctx context.Context, req domain.TurnRequest) (*agent.RunResult, error)
}

// JournalReader lists and counts journaled turns.
type JournalReader interface {
	ListByEntity(ctx context.Context, id domain.EntityID, limit int) ([]store.TurnRecord, error)
	Recent(ctx context.Context, limit int) ([]store.TurnRecord, error)
	Count(ctx context.Context) (int, error)
}

const maxWSPayload = 1 << 20

// Server is the forager HTTP + WebSocket gateway.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	eventSeq atomic.Int64

	runner   TurnRunner
	sessions *session.Registry
	journal  JournalReader
	hooks    *hooks.Manager
	unhook   []func()

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// authRateLimiter tracks failed auth attempts per IP.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

// recent drops failures outside the window and returns what is left.
// Callers hold l.mu.
func (l *authRateLimiter) recent(host string, now time.Time) []time.Time {
	cutoff := now.Add(-authRateWindow)
	times := l.failures[host]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(hostOf(remoteAddr), time.Now())) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.failures[host]; !ok && len(l.failures) >= authRateMaxIPs {
		for ip := range l.failures {
			if l.recent(ip, now) == nil {
				continue
			}
			delete(l.failures, ip)
			break
		}
	}
	l.failures[host] = append(l.failures[host], now)
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks feeds turn lifecycle events to WebSocket observers and emits
// gateway and map events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithJournal exposes journaled turns over RPC.
func WithJournal(j JournalReader) ServerOption {
	return func(s *Server) { s.journal = j }
}

// New creates a gateway server. The runner and the session registry are
// shared by every request the server handles.
func New(cfg config.GatewayConfig, runner TurnRunner, sessions *session.Registry, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("observers")),
		handlers:    make(map[string]RequestHandler),
		runner:      runner,
		sessions:    sessions,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	s.subscribe()
	return s
}

// subscribe forwards turn lifecycle hooks to observers.
func (s *Server) subscribe() {
	if s.hooks == nil {
		return
	}
	forward := map[hooks.Event]string{
		hooks.EventTurnCompleted:     EventTurnCompleted,
		hooks.EventTurnFailed:        EventTurnFailed,
		hooks.EventSessionRegistered: EventSessionNew,
		hooks.EventMapReceived:       EventMapReceived,
	}
	for hookEvent, wsEvent := range forward {
		wsEvent := wsEvent
		off := s.hooks.On(hookEvent, "gateway.broadcast", func(_ context.Context, p hooks.Payload) error {
			s.Broadcast(wsEvent, p.Data)
			return nil
		})
		s.unhook = append(s.unhook, off)
	}
}

// Broadcast sends an event to every connected observer.
func (s *Server) Broadcast(event string, payload any) {
	s.clients.Broadcast(event, payload, s.eventSeq.Add(1))
}

func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens for HTTP and WebSocket connections. It blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	// Turns wait on the reasoning service, so the write timeout tracks the
	// turn timeout rather than a fixed value.
	writeTimeout := 30 * time.Second
	if t := time.Duration(s.cfg.TurnTimeoutSeconds) * time.Second; t > 0 {
		writeTimeout = t + 10*time.Second
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		for _, off := range s.unhook {
			off()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket upgrades to WebSocket and runs the observer connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxWSPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake sends a challenge, reads the connect request, checks its token
// and answers with HelloOK.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
		return nil, fmt.Errorf("parsing connect params: %w", err)
	}

	var token string
	if params.Auth != nil {
		token = params.Auth.Token
	}
	res := Authorize(s.auth, token)
	if !res.OK {
		sendErrorAndClose(conn, frame.ID, "unauthorized", res.Reason)
		return nil, fmt.Errorf("auth failed: %s", res.Reason)
	}

	conn.SetReadDeadline(time.Time{})
	client := NewClient(conn, params.Client, s.log.Sub("ws"))

	resp, err := NewResponse(frame.ID, HelloOK{
		Protocol: ProtocolVersion,
		Server:   version.Info(),
		ConnID:   client.ConnID,
		Methods:  s.Methods(),
		Events:   []string{EventTurnCompleted, EventTurnFailed, EventSessionNew, EventMapReceived},
	})
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	return client, nil
}

func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("observer closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	handler(&RequestContext{Client: client, Frame: frame, Server: s})
}

func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
