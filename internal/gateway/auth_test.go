package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/forager/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("secret", "secreT"))
	assert.False(t, safeEqual("secret", "secret-longer"))
	assert.False(t, safeEqual("", "secret"))
}

func TestResolveAuth_DefaultsToNone(t *testing.T) {
	t.Setenv("FORAGER_GATEWAY_TOKEN", "")
	auth := ResolveAuth(config.GatewayAuth{})
	assert.Equal(t, AuthNone, auth.Mode)
	assert.Empty(t, auth.Token)
}

func TestResolveAuth_TokenFromConfig(t *testing.T) {
	t.Setenv("FORAGER_GATEWAY_TOKEN", "from-env")
	auth := ResolveAuth(config.GatewayAuth{Mode: AuthToken, Token: "from-config"})
	assert.Equal(t, AuthToken, auth.Mode)
	assert.Equal(t, "from-config", auth.Token)
}

func TestResolveAuth_TokenFromEnv(t *testing.T) {
	t.Setenv("FORAGER_GATEWAY_TOKEN", "from-env")
	auth := ResolveAuth(config.GatewayAuth{Mode: AuthToken})
	assert.Equal(t, "from-env", auth.Token)
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		server ResolvedAuth
		token  string
		ok     bool
		reason string
	}{
		{"none accepts anything", ResolvedAuth{Mode: AuthNone}, "", true, ""},
		{"token match", ResolvedAuth{Mode: AuthToken, Token: "abc"}, "abc", true, ""},
		{"token mismatch", ResolvedAuth{Mode: AuthToken, Token: "abc"}, "abd", false, "token_mismatch"},
		{"token missing", ResolvedAuth{Mode: AuthToken, Token: "abc"}, "", false, "token required"},
		{"server token unset", ResolvedAuth{Mode: AuthToken}, "abc", false, "server token not configured"},
		{"unknown mode", ResolvedAuth{Mode: "password"}, "abc", false, "unknown auth mode: password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.token)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer  abc ")
	assert.Equal(t, "abc", bearerToken(req))

	req.Header.Set("Authorization", "bearer xyz")
	assert.Equal(t, "xyz", bearerToken(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, bearerToken(req))
}

func TestAuthRateLimiter(t *testing.T) {
	rl := newAuthRateLimiter()
	assert.True(t, rl.allow("10.0.0.1:1234"))

	for i := 0; i < authRateMaxFails-1; i++ {
		rl.recordFailure("10.0.0.1:1234")
	}
	assert.True(t, rl.allow("10.0.0.1:5555"))

	rl.recordFailure("10.0.0.1:9999")
	assert.False(t, rl.allow("10.0.0.1:1234"))
	assert.True(t, rl.allow("10.0.0.2:1234"))
}

func TestAuthRateLimiter_IPWithoutPort(t *testing.T) {
	rl := newAuthRateLimiter()
	for i := 0; i < authRateMaxFails; i++ {
		rl.recordFailure("10.0.0.3")
	}
	assert.False(t, rl.allow("10.0.0.3"))
}

func TestAuthRateLimiter_ExpiredFailures(t *testing.T) {
	rl := newAuthRateLimiter()
	old := time.Now().Add(-authRateWindow - time.Minute)
	for i := 0; i < authRateMaxFails; i++ {
		rl.failures["10.0.0.4"] = append(rl.failures["10.0.0.4"], old)
	}
	assert.True(t, rl.allow("10.0.0.4:80"))
	assert.NotContains(t, rl.failures, "10.0.0.4")
}

func TestCheckWebSocketOrigin(t *testing.T) {
	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, checkWebSocketOrigin(nil)(withOrigin("")))
	assert.False(t, checkWebSocketOrigin(nil)(withOrigin("http://evil.example")))
	assert.True(t, checkWebSocketOrigin([]string{"*"})(withOrigin("http://any.example")))

	check := checkWebSocketOrigin([]string{"http://sim.local", "http://viewer.local"})
	assert.True(t, check(withOrigin("http://viewer.local")))
	assert.False(t, check(withOrigin("http://other.local")))
}
