// Package upstream provides the authenticated HTTP client for the third-party
// catalog and identity APIs. Every outgoing request attaches the token store's
// current snapshot at send time, so a token rotated mid-run is picked up by
// the next call without rebuilding the client.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pricedesk-api/internal/model"
)

// TokenSource yields the current upstream token snapshot.
type TokenSource interface {
	Snapshot() model.TokenRecord
}

// Client is the shared upstream HTTP client.
type Client struct {
	httpc   *http.Client
	baseURL string
	tokens  TokenSource

	mu     sync.RWMutex
	forced string // fallback bearer pushed via ForceTokenUpdate
}

// New creates an upstream client. Paths passed to the verb methods are
// resolved against baseURL unless they are already absolute.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// ForceTokenUpdate pushes a just-refreshed bearer token into the client. The
// token store snapshot still wins when it holds an access token; the forced
// value covers the window where a caller rotated the token out-of-band.
func (c *Client) ForceTokenUpdate(token string) {
	c.mu.Lock()
	c.forced = token
	c.mu.Unlock()
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// attachAuth reads the current token snapshot and sets auth headers.
func (c *Client) attachAuth(req *http.Request) {
	snap := c.tokens.Snapshot()

	token := snap.AccessToken
	if token == "" {
		c.mu.RLock()
		token = c.forced
		c.mu.RUnlock()
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if snap.APIKey != "" {
		req.Header.Set("X-API-Key", snap.APIKey)
	}
}

// do sends the request and decodes a JSON body into out (out may be nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}
	}
	return nil
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}
