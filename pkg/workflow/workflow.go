// Package workflow hands finished conversations to an n8n webhook and
// carries out the actions it answers with.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-grace/internal/httpc"
	"github.com/teslashibe/go-grace/internal/observe"
	"github.com/teslashibe/go-grace/pkg/store"
)

// UnknownError is reported when a failure carries no usable message.
const UnknownError = "Unknown error occurred"

// ErrNoWebhook is returned when the webhook URL is missing.
var ErrNoWebhook = errors.New("workflow: webhook URL required")

// Message is one conversation turn in the webhook payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the webhook payload.
type Request struct {
	Conversation []Message `json:"conversation"`
	AgentID      string    `json:"agentID"`
	SessionID    string    `json:"sessionID,omitempty"`
}

// Data is the webhook's successful response.
type Data struct {
	URL     string   `json:"url"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Result is the outcome of Process. Exactly one of Data and Error is set.
type Result struct {
	Success bool   `json:"success"`
	Data    *Data  `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithAgentID sets the agent id sent with every request.
func WithAgentID(id string) Option {
	return func(c *Client) {
		c.agentID = id
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client posts conversations to the webhook.
type Client struct {
	url       string
	agentID   string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
	metrics   *observe.Metrics
}

// NewClient creates a client for the webhook at url.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrNoWebhook
	}
	c := &Client{
		url:       url,
		userAgent: httpc.UserAgent(),
		http:      httpc.NewClient(30 * time.Second),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "workflow")
	return c, nil
}

// Messages converts history entries into webhook messages. Anything not
// said by the user is attributed to the assistant.
func Messages(entries []store.Entry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		role := store.SpeakerAssistant
		if e.Speaker == store.SpeakerUser {
			role = store.SpeakerUser
		}
		out = append(out, Message{Role: role, Content: e.Text})
	}
	return out
}

// Process posts the conversation and returns the webhook's answer. It
// never returns a Go error; failures are reported in Result.Error.
func (c *Client) Process(ctx context.Context, sessionID string, entries []store.Entry) Result {
	result := c.process(ctx, sessionID, entries)

	status := "ok"
	if !result.Success {
		status = "error"
		c.logger.Error("workflow request failed", "error", result.Error)
	}
	if c.metrics != nil {
		c.metrics.RecordWorkflow(ctx, status)
	}
	return result
}

func (c *Client) process(ctx context.Context, sessionID string, entries []store.Entry) Result {
	body, err := json.Marshal(Request{
		Conversation: Messages(entries),
		AgentID:      c.agentID,
		SessionID:    sessionID,
	})
	if err != nil {
		return failure(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return failure(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(errorMessage(raw, resp.StatusCode))
	}

	var data Data
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return failure(fmt.Sprintf("decode response: %v", err))
		}
	}
	c.logger.Debug("workflow processed", "status", data.Status, "actions", len(data.Actions))
	return Result{Success: true, Data: &data}
}

// errorMessage picks the response's detail, then its message, then a
// status description.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if status > 0 {
		return fmt.Sprintf("Request failed with status code %d", status)
	}
	return UnknownError
}

func failure(msg string) Result {
	if msg == "" {
		msg = UnknownError
	}
	return Result{Error: msg}
}
