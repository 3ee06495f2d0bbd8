// Package client is the Go SDK for the replayconsole server.
//
// # Quick start
//
//	c := client.New("http://localhost:8080")
//
//	s, err := c.CreateSession(ctx, "checkout flow")
//
//	// Feed console messages as the replay produces them
//	view, err := c.AddMessages(ctx, s.ID, msgs...)
//
//	// Narrow the projection
//	view, err = c.SetFilterText(ctx, s.ID, "/timeout|refused/")
//	msgs, err := c.VisibleMessages(ctx, s.ID)
//
// # Error handling
//
// All methods return an *APIError when the server responds with a non-2xx
// status code. Check errors.As(err, &client.APIError{}) to inspect the HTTP
// status and server message.
//
// # Connection reuse
//
// Client is safe for concurrent use. It shares a single http.Client internally
// so connections are reused across goroutines.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/snehjoshi/replayconsole/internal/types"
)

// Wire types shared with the server.
type (
	Message     = types.Message
	MessageText = types.MessageText
	Action      = types.Action
	Filters     = types.Filters
)

// ─── Error type ───────────────────────────────────────────────────────────────

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int    // HTTP status code
	Message    string // "error" field from the JSON response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replayconsole: server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the error is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// IsBadRequest reports whether the server rejected the request as malformed.
func IsBadRequest(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusBadRequest
}

// ─── Client options ───────────────────────────────────────────────────────────

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key sent in every request as the X-Api-Key header.
// Required when the server has auth.enabled = true.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default http.Client.
// Use this to configure TLS, proxies, or request tracing.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
// The default is 30 seconds.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// ─── Client ───────────────────────────────────────────────────────────────────

// Client is the replayconsole API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a new Client that connects to the server at baseURL.
//
//	c := client.New("http://localhost:8080")
//	c := client.New("http://console.example.com", client.WithAPIKey("secret"))
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ─── Public types ─────────────────────────────────────────────────────────────

// Session summarises a console session.
type Session struct {
	ID        string  `json:"id"`
	Label     string  `json:"label,omitempty"`
	CreatedAt int64   `json:"created_at"`
	Messages  int     `json:"messages"`
	Visible   int     `json:"visible"`
	Seq       uint64  `json:"seq,omitempty"`
	Filters   Filters `json:"filters"`
}

// View is the projection returned after every dispatched action.
type View struct {
	Seq      uint64         `json:"seq"`
	Visible  []string       `json:"visible"`
	Filtered map[string]int `json:"filtered"`
	Filters  Filters        `json:"filters"`
}

// MessageDetail is a stored message with its UI state.
type MessageDetail struct {
	Message        *Message        `json:"message"`
	Open           bool            `json:"open"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	InWarningGroup bool            `json:"in_warning_group"`
}

// HealthInfo is returned by Health.
type HealthInfo struct {
	Status   string `json:"status"`
	NodeID   string `json:"node_id"`
	Sessions int    `json:"sessions"`
	UptimeMs int64  `json:"uptime_ms"`
	Version  string `json:"version"`
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

// CreateSession starts an empty console session.
func (c *Client) CreateSession(ctx context.Context, label string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"label": label}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns every session on the server.
func (c *Client) ListSessions(ctx context.Context) ([]*Session, error) {
	var resp struct {
		Sessions []*Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// GetSession returns a session with its filter state.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session and its journal.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

// ─── Messages ─────────────────────────────────────────────────────────────────

// AddMessages ingests one batch.
func (c *Client) AddMessages(ctx context.Context, sessionID string, msgs ...Message) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/messages", map[string]any{"messages": msgs})
}

// VisibleMessages returns the visible projection in display order.
func (c *Client) VisibleMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	var resp struct {
		Messages []*Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// GetMessage returns one stored message, visible or not.
func (c *Client) GetMessage(ctx context.Context, sessionID, messageID string) (*MessageDetail, error) {
	var d MessageDetail
	if err := c.do(ctx, http.MethodGet, messagePath(sessionID, messageID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// OpenMessage expands a group or message.
func (c *Client) OpenMessage(ctx context.Context, sessionID, messageID string) (*View, error) {
	return c.view(ctx, http.MethodPost, messagePath(sessionID, messageID)+"/open", nil)
}

// CloseMessage collapses a group or message.
func (c *Client) CloseMessage(ctx context.Context, sessionID, messageID string) (*View, error) {
	return c.view(ctx, http.MethodPost, messagePath(sessionID, messageID)+"/close", nil)
}

// UpdatePayload attaches data to a message.
func (c *Client) UpdatePayload(ctx context.Context, sessionID, messageID string, data json.RawMessage) (*View, error) {
	return c.view(ctx, http.MethodPut, messagePath(sessionID, messageID)+"/payload", data)
}

// ─── Clearing ─────────────────────────────────────────────────────────────────

// Clear empties the console.
func (c *Client) Clear(ctx context.Context, sessionID string) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/clear", nil)
}

// ClearEvaluations removes every evaluation command and result.
func (c *Client) ClearEvaluations(ctx context.Context, sessionID string) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/evaluations/clear", nil)
}

// ClearEvaluation removes one evaluation command and its result.
func (c *Client) ClearEvaluation(ctx context.Context, sessionID, commandID string) (*View, error) {
	return c.view(ctx, http.MethodDelete, sessionPath(sessionID)+"/evaluations/"+url.PathEscape(commandID), nil)
}

// ClearLogpoint removes a logpoint's messages and ignores its later hits.
func (c *Client) ClearLogpoint(ctx context.Context, sessionID, logpointID string) (*View, error) {
	return c.view(ctx, http.MethodDelete, sessionPath(sessionID)+"/logpoints/"+url.PathEscape(logpointID), nil)
}

// ─── Replay position ──────────────────────────────────────────────────────────

// SetPausedPoint records where the replay is paused. An empty point means the
// replay is not paused.
func (c *Client) SetPausedPoint(ctx context.Context, sessionID, point string, t float64) (*View, error) {
	body := map[string]any{"point": point, "time": t}
	return c.view(ctx, http.MethodPut, sessionPath(sessionID)+"/paused-point", body)
}

// ─── Filters ──────────────────────────────────────────────────────────────────

// Filters returns the session's filter state.
func (c *Client) Filters(ctx context.Context, sessionID string) (*Filters, error) {
	var fs Filters
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID)+"/filters", nil, &fs); err != nil {
		return nil, err
	}
	return &fs, nil
}

// ToggleFilter flips a level or the nodemodules filter.
func (c *Client) ToggleFilter(ctx context.Context, sessionID, name string) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/filters/"+url.PathEscape(name)+"/toggle", nil)
}

// SetFilterText sets the search text. "-term" excludes and "/re/" is a regex.
func (c *Client) SetFilterText(ctx context.Context, sessionID, text string) (*View, error) {
	return c.view(ctx, http.MethodPut, sessionPath(sessionID)+"/filters/text", map[string]string{"text": text})
}

// ClearFilters puts every filter back to its default.
func (c *Client) ClearFilters(ctx context.Context, sessionID string) (*View, error) {
	return c.view(ctx, http.MethodDelete, sessionPath(sessionID)+"/filters", nil)
}

// ResetDefaultFilters puts the level filters back to their defaults and keeps
// the search text.
func (c *Client) ResetDefaultFilters(ctx context.Context, sessionID string) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/filters/reset", nil)
}

// FilteredCount returns how many messages each filter hides.
func (c *Client) FilteredCount(ctx context.Context, sessionID string) (map[string]int, error) {
	var counts map[string]int
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID)+"/filtered-count", nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Dispatch sends a raw action.
func (c *Client) Dispatch(ctx context.Context, sessionID string, a Action) (*View, error) {
	return c.view(ctx, http.MethodPost, sessionPath(sessionID)+"/actions", a)
}

// ─── Health ───────────────────────────────────────────────────────────────────

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var h HealthInfo
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ─── HTTP transport ───────────────────────────────────────────────────────────

func sessionPath(id string) string { return "/sessions/" + url.PathEscape(id) }

func messagePath(sessionID, messageID string) string {
	return sessionPath(sessionID) + "/messages/" + url.PathEscape(messageID)
}

func (c *Client) view(ctx context.Context, method, path string, body any) (*View, error) {
	var v View
	if err := c.do(ctx, method, path, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// do performs a single HTTP request.
// body is encoded as JSON when non-nil, resp is decoded from JSON when non-nil.
// A 204 No Content response is treated as success with no body.
func (c *Client) do(ctx context.Context, method, path string, body, resp any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("replayconsole: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("replayconsole: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("replayconsole: request %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("replayconsole: read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		return &APIError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	if resp != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, resp); err != nil {
			return fmt.Errorf("replayconsole: decode response: %w", err)
		}
	}
	return nil
}
