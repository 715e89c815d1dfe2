package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/gateway"
	"github.com/soyeahso/forager/internal/version"
)

// gatewayClient talks to a running forager server.
type gatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newGatewayClient(cfg config.Config, override string, timeout time.Duration) *gatewayClient {
	base := override
	if base == "" {
		base = defaultServerURL(cfg.Gateway)
	}
	return &gatewayClient{
		baseURL: base,
		token:   gateway.ResolveAuth(cfg.Gateway.Auth).Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// defaultServerURL is where a local `forager serve` listens.
func defaultServerURL(g config.GatewayConfig) string {
	scheme := "http"
	if g.TLS.Enabled {
		scheme = "https"
	}
	host := "127.0.0.1"
	if g.Bind == "custom" && g.CustomBindHost != "" && g.CustomBindHost != "0.0.0.0" {
		host = g.CustomBindHost
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(g.Port))
}

// do sends a JSON request and decodes a JSON response into out. Non-2xx
// answers become errors carrying the server's error message.
func (c *gatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error     string `json:"error"`
			RequestID string `json:"requestId"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			if e.RequestID != "" {
				return fmt.Errorf("%s %s: %d %s (request %s)", method, path, resp.StatusCode, e.Error, e.RequestID)
			}
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
