// Package syncclient talks to the session API the way a participant's device does.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"
)

// APIError is a non-2xx reply other than session-not-found
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls /api/v1/sessions on one server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends the bearer token on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) sessionPath(id string, suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + suffix
}

// Create starts a session as the initiator
func (c *Client) Create(ctx context.Context, req services.CreateSessionRequest) (*services.CreateSessionResponse, error) {
	var resp services.CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get fetches the current record
func (c *Client) Get(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := c.do(ctx, http.MethodGet, c.sessionPath(id, ""), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Respond writes the responder's choice
func (c *Client) Respond(ctx context.Context, id, choice string) (*services.TransitionResult, error) {
	return c.transition(ctx, http.MethodPut, c.sessionPath(id, ""), map[string]string{"choice": choice})
}

// Start asks for the shared countdown
func (c *Client) Start(ctx context.Context, id string) (*services.TransitionResult, error) {
	return c.transition(ctx, http.MethodPost, c.sessionPath(id, "/start"), nil)
}

// Snap records a tap at clientMillis
func (c *Client) Snap(ctx context.Context, id string, p models.Participant, clientMillis int64) (*services.TransitionResult, error) {
	body := map[string]interface{}{"participant": p, "clientTime": clientMillis}
	return c.transition(ctx, http.MethodPost, c.sessionPath(id, "/snap"), body)
}

// Reveal opens a letter
func (c *Client) Reveal(ctx context.Context, id string) (*services.TransitionResult, error) {
	return c.transition(ctx, http.MethodPost, c.sessionPath(id, "/reveal"), nil)
}

func (c *Client) transition(ctx context.Context, method, path string, body interface{}) (*services.TransitionResult, error) {
	var res services.TransitionResult
	if err := c.do(ctx, method, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/v1/sessions/") {
		return models.ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
