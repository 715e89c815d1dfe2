package gateway

import (
	"testing"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/stretchr/testify/assert"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestClientRegistry_AddRemoveCount(t *testing.T) {
	reg := NewClientRegistry(testLog())
	assert.Equal(t, 0, reg.Count())

	a := &Client{ConnID: "a"}
	b := &Client{ConnID: "b"}
	reg.Add(a)
	reg.Add(b)
	assert.Equal(t, 2, reg.Count())

	reg.Remove("a")
	assert.Equal(t, 1, reg.Count())

	reg.Remove("missing")
	assert.Equal(t, 1, reg.Count())
}

func TestClient_SendAfterClose(t *testing.T) {
	c := &Client{ConnID: "x", closed: true}
	assert.ErrorIs(t, c.Send(Frame{Type: FrameTypeEvent}), ErrClientClosed)
	assert.NoError(t, c.Close())
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		cfg  config.GatewayConfig
		want string
	}{
		{config.GatewayConfig{Port: 12345, Bind: "loopback"}, "127.0.0.1:12345"},
		{config.GatewayConfig{Port: 12345}, "127.0.0.1:12345"},
		{config.GatewayConfig{Port: 8080, Bind: "lan"}, "0.0.0.0:8080"},
		{config.GatewayConfig{Port: 9000, Bind: "custom", CustomBindHost: "192.168.1.5"}, "192.168.1.5:9000"},
		{config.GatewayConfig{Port: 9000, Bind: "custom"}, "0.0.0.0:9000"},
		{config.GatewayConfig{Port: 9000, Bind: "custom", CustomBindHost: "::1"}, "[::1]:9000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
	}
}
