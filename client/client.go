// Package client is a typed Go client for the pushgate HTTP API, used by
// monitoring jobs and deployment pipelines to raise alerts.
package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agistaffers/pushgate/lib"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/carlmjohnson/requests"
)

type Client struct {
	baseURL   string
	transport http.RoundTripper
	username  string
	password  string
}

type Option func(*Client)

// WithTransport overrides the outbound RoundTripper.
func WithTransport(t http.RoundTripper) Option {
	return func(c *Client) { c.transport = t }
}

// WithBasicAuth sets credentials for the /api routes.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) { c.username = username; c.password = password }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: baseURL, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is the envelope every API endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type Health struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Subscriptions  int64  `json:"subscriptions"`
	VapidPublicKey string `json:"vapidPublicKey"`
}

func (c *Client) builder(path string) *requests.Builder {
	b := requests.URL(c.baseURL + path).Transport(c.transport)
	if c.username != "" {
		b = b.BasicAuth(c.username, c.password)
	}
	return b
}

func (c *Client) post(ctx context.Context, path string, body any) (Response, error) {
	var resp Response
	err := c.builder(path).
		BodyJSON(body).
		ToJSON(&resp).
		Fetch(ctx)
	return resp, err
}

func (c *Client) Subscribe(ctx context.Context, userID string, sub lib.WebPushSubscription) error {
	_, err := c.post(ctx, "/api/subscribe", map[string]any{
		"userId":       userID,
		"subscription": sub,
	})
	return err
}

func (c *Client) Unsubscribe(ctx context.Context, userID string) error {
	_, err := c.post(ctx, "/api/unsubscribe", map[string]any{"userId": userID})
	return err
}

func (c *Client) SetPreferences(ctx context.Context, userID string, prefs models.PreferenceMap) error {
	_, err := c.post(ctx, "/api/preferences", map[string]any{
		"userId":      userID,
		"preferences": prefs,
	})
	return err
}

func (c *Client) TestNotification(ctx context.Context, userID, title, body string) error {
	_, err := c.post(ctx, "/api/test-notification", map[string]any{
		"userId": userID,
		"title":  title,
		"body":   body,
	})
	return err
}

// Broadcast returns the server's summary message
// ("Broadcast sent to N users, M failed").
func (c *Client) Broadcast(ctx context.Context, title, body, typ, filterPreference string) (string, error) {
	resp, err := c.post(ctx, "/api/broadcast", map[string]any{
		"title":            title,
		"body":             body,
		"type":             typ,
		"filterPreference": filterPreference,
	})
	return resp.Message, err
}

// Alert raises a typed alert through the generic webhook.
func (c *Client) Alert(ctx context.Context, typ, severity, message string) error {
	_, err := c.post(ctx, "/api/alert", map[string]any{
		"type":     typ,
		"severity": severity,
		"message":  message,
	})
	return err
}

// Notify posts to one of the typed convenience endpoints, e.g.
// Notify(ctx, "high-cpu", map[string]any{"usage": 93.5, "threshold": 80}).
func (c *Client) Notify(ctx context.Context, alertType string, body any) error {
	_, err := c.post(ctx, "/api/notify/"+alertType, body)
	return err
}

type HistoryEntry struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	SentAt  string `json:"sentAt"`
}

// History lists the most recent delivery attempts for one user.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	var resp struct {
		Success bool           `json:"success"`
		History []HistoryEntry `json:"history"`
	}
	b := c.builder("/api/history/" + userID)
	if limit > 0 {
		b = b.Param("limit", strconv.Itoa(limit))
	}
	err := b.ToJSON(&resp).Fetch(ctx)
	return resp.History, err
}

func (c *Client) GetHealth(ctx context.Context) (Health, error) {
	var health Health
	err := requests.URL(c.baseURL + "/health").
		Transport(c.transport).
		ToJSON(&health).
		Fetch(ctx)
	return health, err
}
