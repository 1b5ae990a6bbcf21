// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"

	"marketing-analyst/internal/common/logger"
)

// Client is the outbound HTTP client shared by the model providers. Every
// round trip is logged at debug level without headers or bodies.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &loggingTransport{next: http.DefaultTransport, log: logger.ForComponent(log, "http-client")},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// Standard exposes the underlying client for SDKs that take *http.Client.
func (c *Client) Standard() *http.Client {
	return c.httpClient
}

type loggingTransport struct {
	next http.RoundTripper
	log  logger.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := map[string]interface{}{
		"method":      req.Method,
		"host":        req.URL.Host,
		"path":        req.URL.Path,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		t.log.Warn("Outbound request failed", fields)
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.log.Debug("Outbound request", fields)
	return resp, nil
}
