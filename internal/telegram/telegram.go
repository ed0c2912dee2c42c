// Package telegram wraps the Telegram Bot API for FriendQuiz.
//
// It implements the small subset the service needs: sending text messages,
// long-polling for updates, and webhook registration. Auth framing beyond the
// webhook secret token is out of scope here.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// DefaultHTTPTimeout bounds a single API call. Long polls add their own
// timeout on top of this.
const DefaultHTTPTimeout = 40 * time.Second

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token      string
	APIBaseURL string
	HTTPClient *http.Client
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithAPIBaseURL overrides the Bot API base URL (for tests).
func WithAPIBaseURL(url string) Option {
	return func(o *Opts) {
		o.APIBaseURL = url
	}
}

// WithHTTPClient overrides the HTTP client (for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = client
	}
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Telegram client, falling back to $BOT_TOKEN when no
// token option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("BOT_TOKEN")
	}
	slog.Debug("Telegram client config loaded", "token_set", cfg.Token != "", "base_url_set", cfg.APIBaseURL != "")
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token must be provided")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{
		token:   cfg.Token,
		baseURL: fmt.Sprintf("%s/bot%s", cfg.APIBaseURL, cfg.Token),
		http:    cfg.HTTPClient,
	}, nil
}

// SendMessage sends a text message to the given chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	var resp apiResponse
	if err := c.call(ctx, "sendMessage", req, &resp); err != nil {
		slog.Error("Telegram SendMessage failed", "error", err, "chatID", chatID)
		return err
	}
	if !resp.OK {
		slog.Error("Telegram SendMessage rejected", "chatID", chatID, "description", resp.Description)
		return fmt.Errorf("telegram sendMessage failed: %s", resp.Description)
	}
	slog.Debug("Telegram SendMessage succeeded", "chatID", chatID, "body_length", len(text))
	return nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", c.baseURL, offset, int(timeout.Seconds()))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build getUpdates request: %w", err)
	}
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("getUpdates request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read getUpdates response: %w", err)
	}
	var resp getUpdatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getUpdates failed: %s", resp.Description)
	}
	slog.Debug("Telegram GetUpdates succeeded", "offset", offset, "count", len(resp.Result))
	return resp.Result, nil
}

// SetWebhook registers the webhook URL with the given secret token.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string, dropPending bool) error {
	req := setWebhookRequest{URL: url, SecretToken: secretToken, DropPendingUpdates: dropPending}
	var resp apiResponse
	if err := c.call(ctx, "setWebhook", req, &resp); err != nil {
		slog.Error("Telegram SetWebhook failed", "error", err)
		return err
	}
	if !resp.OK {
		slog.Error("Telegram SetWebhook rejected", "description", resp.Description)
		return fmt.Errorf("telegram setWebhook failed: %s", resp.Description)
	}
	slog.Info("Telegram webhook registered", "url", url)
	return nil
}

// DeleteWebhook removes the registered webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	var resp apiResponse
	if err := c.call(ctx, "deleteWebhook", struct{}{}, &resp); err != nil {
		slog.Error("Telegram DeleteWebhook failed", "error", err)
		return err
	}
	if !resp.OK {
		return fmt.Errorf("telegram deleteWebhook failed: %s", resp.Description)
	}
	slog.Debug("Telegram webhook deleted")
	return nil
}

// call posts a JSON payload to a Bot API method and decodes the envelope.
func (c *Client) call(ctx context.Context, method string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	return nil
}
