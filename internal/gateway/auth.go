package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/forager/internal/config"
)

// Auth modes.
const (
	AuthNone  = "none"
	AuthToken = "token"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the effective gateway credentials.
type ResolvedAuth struct {
	Mode  string
	Token string
}

// ResolveAuth resolves credentials from config, then FORAGER_GATEWAY_TOKEN.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("FORAGER_GATEWAY_TOKEN")
	}
	if auth.Mode == "" {
		auth.Mode = AuthNone
	}
	return auth
}

// Authorize checks a presented token against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, token string) AuthResult {
	switch serverAuth.Mode {
	case AuthNone:
		return AuthResult{OK: true, Method: AuthNone}
	case AuthToken:
		if serverAuth.Token == "" {
			return AuthResult{OK: false, Reason: "server token not configured"}
		}
		if token == "" {
			return AuthResult{OK: false, Reason: "token required"}
		}
		if !safeEqual(token, serverAuth.Token) {
			return AuthResult{OK: false, Reason: "token_mismatch"}
		}
		return AuthResult{OK: true, Method: AuthToken}
	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// safeEqual performs a constant-time string comparison that does not leak
// the secret's length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
