// Package api is the HTTP transport adapter for the bot backend. Each method
// maps to one remote capability, takes plain data, and fails with a typed
// error. Retry policy belongs to callers; every call is idempotent from the
// adapter's point of view except SendMessage.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchbot/console/internal/logging"
)

const (
	defaultRequestTimeout = 15 * time.Second
	// longPollGrace is added to the server-side wait budget so the client
	// deadline fires only if the server itself stops responding.
	longPollGrace = 10 * time.Second
)

// ClientConfig configures the transport adapter.
type ClientConfig struct {
	// BaseURL is the root URL of the bot backend.
	BaseURL string

	// Token is the operator bearer credential. If empty, TokenFile is read.
	Token string

	// TokenFile is the path of a file holding the credential.
	TokenFile string

	// RequestTimeout bounds plain request/response calls.
	RequestTimeout time.Duration
}

// Client issues authenticated requests against the bot backend. Safe for
// concurrent use.
type Client struct {
	baseURL        string
	tokenFile      string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         zerolog.Logger

	tokenMu sync.Mutex
	token   string
}

// NewClient creates a transport adapter. The credential is resolved lazily so
// a missing token file surfaces as an AuthError on first use rather than at
// construction.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		tokenFile:      strings.TrimSpace(cfg.TokenFile),
		requestTimeout: requestTimeout,
		// No client-wide timeout: the long-poll call needs to outlive the
		// plain request budget. Deadlines are applied per call via context.
		httpClient: &http.Client{},
		logger:     logging.Component("api"),
	}, nil
}

// Conversations fetches the conversation list.
func (c *Client) Conversations(ctx context.Context, unreadOnly bool) ([]Conversation, error) {
	path := "/operator/conversations"
	if unreadOnly {
		path += "?unread_only=1"
	}

	var out []Conversation
	if err := c.get(ctx, path, c.requestTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the full message history for a conversation.
func (c *Client) Messages(ctx context.Context, peerID string) ([]Message, error) {
	var out []Message
	path := "/operator/conversations/" + url.PathEscape(peerID) + "/messages"
	if err := c.get(ctx, path, c.requestTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts an outgoing message and returns the server-assigned
// message id.
func (c *Client) SendMessage(ctx context.Context, peerID, text string) (string, error) {
	payload := struct {
		Text string `json:"text"`
	}{Text: text}

	var out struct {
		MessageID string `json:"message_id"`
	}
	path := "/operator/conversations/" + url.PathEscape(peerID) + "/messages"
	if err := c.post(ctx, path, payload, &out); err != nil {
		return "", err
	}
	if out.MessageID == "" {
		return "", &ServerError{Status: http.StatusOK, Detail: "send response missing message id"}
	}
	return out.MessageID, nil
}

// MarkAsRead marks every message in a conversation as read by the operator.
func (c *Client) MarkAsRead(ctx context.Context, peerID string) error {
	path := "/operator/conversations/" + url.PathEscape(peerID) + "/read"
	return c.post(ctx, path, struct{}{}, nil)
}

// DeleteConversation removes a conversation and its history.
func (c *Client) DeleteConversation(ctx context.Context, peerID string) error {
	path := "/operator/conversations/" + url.PathEscape(peerID)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, c.requestTimeout, nil)
}

// WaitForMessages blocks on the long-poll endpoint until the server reports a
// new message or its wait budget elapses.
func (c *Client) WaitForMessages(ctx context.Context, wait time.Duration) (WaitResult, error) {
	seconds := int(wait / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	var out WaitResult
	path := "/operator/messages/wait?timeout=" + strconv.Itoa(seconds)
	if err := c.get(ctx, path, wait+longPollGrace, &out); err != nil {
		return WaitResult{}, err
	}
	return out, nil
}

// UnreadCount fetches the total unread count for a resource type.
func (c *Client) UnreadCount(ctx context.Context, resource UnreadResource) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := "/operator/unread?resource=" + url.QueryEscape(string(resource))
	if err := c.get(ctx, path, c.requestTimeout, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, timeout, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, c.requestTimeout, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	token, err := c.credential()
	if err != nil {
		return nil, err
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, timeout time.Duration, out any) error {
	ctx := req.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	op := req.Method + " " + req.URL.Path

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warn().Int("status", resp.StatusCode).Str("op", op).Msg("credential rejected")
		return &AuthError{Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail := readErrorDetail(resp)
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("op", op).
			Str("detail", logging.Redact(detail)).
			Msg("server rejected request")
		return &ServerError{Status: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readErrorDetail extracts a human-readable detail from an error response.
// The backend answers {"error": "..."} but plain-text bodies occur behind
// proxies, so both are accepted.
func readErrorDetail(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return ""
	}
	if err := json.Unmarshal(buf.Bytes(), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}

	detail := strings.TrimSpace(buf.String())
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// credential returns the bearer token, reading the token file on first use.
func (c *Client) credential() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	if c.tokenFile == "" {
		return "", &AuthError{Status: http.StatusUnauthorized}
	}

	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.tokenFile).Msg("token file unreadable")
		return "", &AuthError{Status: http.StatusUnauthorized}
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", &AuthError{Status: http.StatusUnauthorized}
	}
	c.token = token
	return token, nil
}
