// Package maxapi is a client for the MAX messenger Bot API.
package maxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"prodmax/internal/bot"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://platform-api.max.ru"

// Client is the MAX Bot API client. The bot token is sent verbatim in the
// Authorization header; the API does not use the Bearer scheme.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ bot.Messenger = (*Client)(nil)

// New creates a new API client.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "maxapi"),
	}
}

// Recipient addresses a message on the wire.
type Recipient struct {
	ChatID int64 `json:"chat_id,omitempty"`
	UserID int64 `json:"user_id,omitempty"`
}

// Button is an inline keyboard button.
type Button struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
}

// Attachment is a message attachment; only inline keyboards are produced.
type Attachment struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// KeyboardPayload is the payload of an inline_keyboard attachment.
type KeyboardPayload struct {
	Buttons [][]Button `json:"buttons"`
}

// NewMessageBody is the body of POST /messages. The recipient travels in the
// query string, not here.
type NewMessageBody struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Format      string       `json:"format,omitempty"`
	Notify      *bool        `json:"notify,omitempty"`
}

// User is a MAX user profile.
type User struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// DisplayName picks the most readable name the profile carries.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

// Subscription is one webhook subscription.
type Subscription struct {
	URL         string   `json:"url"`
	Time        int64    `json:"time,omitempty"`
	UpdateTypes []string `json:"update_types,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// SimpleResult is the generic success envelope of mutating calls.
type SimpleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendMessage posts a message to a chat, or to a user when no chat is known.
func (c *Client) SendMessage(ctx context.Context, to Recipient, body NewMessageBody) error {
	params := url.Values{}
	switch {
	case to.ChatID != 0:
		params.Set("chat_id", strconv.FormatInt(to.ChatID, 10))
	case to.UserID != 0:
		params.Set("user_id", strconv.FormatInt(to.UserID, 10))
	default:
		return fmt.Errorf("maxapi.SendMessage: no recipient")
	}
	if err := c.doRequest(ctx, http.MethodPost, "/messages?"+params.Encode(), body, nil); err != nil {
		return fmt.Errorf("maxapi.SendMessage: %w", err)
	}
	return nil
}

// Send implements bot.Messenger.
func (c *Client) Send(ctx context.Context, to bot.Recipient, r bot.Reply) error {
	body := NewMessageBody{Text: r.Text}
	if len(r.Buttons) > 0 {
		body.Attachments = []Attachment{InlineKeyboard(r.Buttons)}
	}
	return c.SendMessage(ctx, Recipient{ChatID: to.ChatID, UserID: to.UserID}, body)
}

// InlineKeyboard lays buttons out two per row. Buttons with a command become
// callback buttons carrying {"command": ...}; the rest echo their text.
func InlineKeyboard(buttons []bot.Button) Attachment {
	rows := make([][]Button, 0, (len(buttons)+1)/2)
	for i := 0; i < len(buttons); i += 2 {
		row := make([]Button, 0, 2)
		for _, b := range buttons[i:min(i+2, len(buttons))] {
			row = append(row, toWireButton(b))
		}
		rows = append(rows, row)
	}
	return Attachment{Type: "inline_keyboard", Payload: KeyboardPayload{Buttons: rows}}
}

func toWireButton(b bot.Button) Button {
	if b.Command == "" {
		return Button{Type: "message", Text: b.Text}
	}
	payload, _ := json.Marshal(map[string]string{"command": b.Command})
	return Button{Type: "callback", Text: b.Text, Payload: string(payload)}
}

// GetUser fetches a user profile.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/"+strconv.FormatInt(userID, 10), &u); err != nil {
		return nil, fmt.Errorf("maxapi.GetUser: %w", err)
	}
	return &u, nil
}

// LookupUsername implements app.ProfileLookup.
func (c *Client) LookupUsername(ctx context.Context, maxUserID int64) (string, error) {
	u, err := c.GetUser(ctx, maxUserID)
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

// ValidateWebhookURL checks that raw is an absolute https URL.
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return ErrInsecureWebhookURL
	}
	return nil
}

// Subscribe registers webhookURL for updates. A non-empty secret is echoed by
// MAX in the X-Max-Bot-Api-Secret header of every delivery.
func (c *Client) Subscribe(ctx context.Context, webhookURL, secret string) (*SimpleResult, error) {
	if err := ValidateWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("maxapi.Subscribe: %w", err)
	}
	body := struct {
		URL    string `json:"url"`
		Secret string `json:"secret,omitempty"`
	}{URL: webhookURL, Secret: secret}

	var res SimpleResult
	if err := c.post(ctx, "/subscriptions", body, &res); err != nil {
		return nil, fmt.Errorf("maxapi.Subscribe: %w", err)
	}
	return &res, nil
}

// Subscriptions lists the bot's webhook subscriptions.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var out struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	if err := c.get(ctx, "/subscriptions", &out); err != nil {
		return nil, fmt.Errorf("maxapi.Subscriptions: %w", err)
	}
	return out.Subscriptions, nil
}

// Unsubscribe removes the subscription for webhookURL.
func (c *Client) Unsubscribe(ctx context.Context, webhookURL string) (*SimpleResult, error) {
	path := "/subscriptions"
	if webhookURL != "" {
		path += "?" + url.Values{"url": {webhookURL}}.Encode()
	}
	var res SimpleResult
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, fmt.Errorf("maxapi.Unsubscribe: %w", err)
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", req.URL.Path, "request_id", requestID, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request", "method", method, "path", req.URL.Path, "status", resp.StatusCode,
		"duration", time.Since(start), "request_id", requestID)

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
