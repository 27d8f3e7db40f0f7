package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultAPIVersion = "2025-01"
	HeaderAccessToken = "X-Shopify-Access-Token"

	maxResponseBytes = 8 << 20
)

// HTTPStatusError reports a non-2xx answer from the platform. The body is
// deliberately not kept: it may echo request data.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("shopify: http %d", e.StatusCode)
}

// Client talks to a shop's Admin API. One Client serves every tenant; the
// shop domain and token are passed on each call.
type Client struct {
	http       *http.Client
	apiVersion string
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithBaseURL sends every request to base instead of https://<shop>. Used to
// point the client at a local fake.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiVersion: DefaultAPIVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) APIVersion() string { return c.apiVersion }

func (c *Client) shopURL(shop, path string) string {
	if c.baseURL != "" {
		return c.baseURL + path
	}
	return "https://" + shop + path
}

func (c *Client) adminURL(shop, resource string) string {
	return c.shopURL(shop, fmt.Sprintf("/admin/api/%s/%s", c.apiVersion, resource))
}

// postJSON sends body as JSON and returns the status and raw response body.
// token may be empty for unauthenticated endpoints.
func (c *Client) postJSON(ctx context.Context, url, token string, body any) (int, []byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(HeaderAccessToken, token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return res.StatusCode, raw, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
