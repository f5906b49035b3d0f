// Package proxy talks to the same-origin OpenAI proxy used for
// non-streaming chat, model listing and billing queries.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shl518/vchat/internal/vchat"
)

// Endpoint is the proxy route every request goes through; the upstream
// path travels in the "path" header.
const Endpoint = "/api/openai?_vercel_no_cache=1"

// Client wraps an http.Client with the proxy base URL and the access headers.
type Client struct {
	baseURL    string
	access     vchat.Access
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a proxy client. A nil httpClient uses http.DefaultClient
// and a nil logger uses slog.Default().
func NewClient(baseURL string, access vchat.Access, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		access:     access,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Headers returns the access headers for the current settings.
func (c *Client) Headers() http.Header {
	headers := http.Header{}
	if c.access == nil {
		return headers
	}
	if c.access.EnabledAccessControl() {
		headers.Set("access-code", c.access.GetAccessCode())
	}
	if token := c.access.GetToken(); token != "" {
		headers.Set("token", token)
	}
	return headers
}

// Do sends body to the upstream path and returns the raw response.
// An empty method means POST; a nil body sends no payload.
func (c *Client) Do(ctx context.Context, path string, body any, method string) (*http.Response, error) {
	if method == "" {
		method = http.MethodPost
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+Endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("path", path)
	for key, values := range c.Headers() {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	c.logger.Debug("proxy request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	return resp, nil
}

// DecodeJSON decodes the response body into v and closes it. A body that is
// not valid JSON is logged and reported as false instead of an error.
func (c *Client) DecodeJSON(resp *http.Response, v any) bool {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("[Request] reading response failed", "status", resp.StatusCode, "error", err)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Error("[Request] parsing response failed", "status", resp.StatusCode, "error", err, "body", string(body))
		return false
	}
	return true
}
