// Package httpfetch defines the narrow HTTP contract the Source
// Adapters need (GET a listing or a data file, HEAD-probe for
// existence). spec.md §1 names "HTTP client" as an out-of-scope
// external collaborator — this package is the seam the adapters code
// against; DefaultClient is a thin net/http-backed implementation
// rather than a hand-rolled transport, since net/http already is the
// standard collaborator every Go HTTP caller in the reference corpus
// reaches for.
package httpfetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is a fetched resource: status, body, and the handful of
// headers adapters inspect (Last-Modified for freshness, Content-Length
// for HEAD probes).
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client is the HTTP contract consumed by internal/sources.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
	Head(ctx context.Context, url string) (*Response, error)
}

// DefaultClient wraps net/http.Client. insecureSkipVerify exists only
// for SHMU, whose provider policy is to ignore the server's TLS
// certificate (spec.md §4.1).
type DefaultClient struct {
	http *http.Client
}

// New builds a DefaultClient. insecureSkipVerify disables certificate
// verification for this client only — used exclusively by the SHMU
// adapter, never shared with other sources' clients.
func New(timeout time.Duration, insecureSkipVerify bool) *DefaultClient {
	transport := &http.Transport{}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // provider policy, spec.md §4.1
	}
	return &DefaultClient{http: &http.Client{Timeout: timeout, Transport: transport}}
}

func (c *DefaultClient) do(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: building %s request: %w", method, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	var body []byte
	if method != http.MethodHead {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpfetch: reading body from %s: %w", url, err)
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

func (c *DefaultClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url)
}

func (c *DefaultClient) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodHead, url)
}
