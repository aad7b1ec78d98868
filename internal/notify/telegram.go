package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/donaldgifford/price-monitor/internal/metrics"
)

const (
	defaultTelegramAPI       = "https://api.telegram.org"
	telegramMaxMessageLength = 4096
)

// TelegramTransport implements Transport via the Telegram Bot API
// sendMessage method. The recipient is the chat id.
type TelegramTransport struct {
	token   string
	baseURL string
	client  *http.Client
}

// TelegramOption configures a TelegramTransport.
type TelegramOption func(*TelegramTransport)

// WithAPIBaseURL overrides the Bot API base URL.
func WithAPIBaseURL(u string) TelegramOption {
	return func(t *TelegramTransport) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTelegramHTTPClient sets a custom HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramTransport) {
		t.client = c
	}
}

// NewTelegramTransport creates a TelegramTransport for the bot token.
func NewTelegramTransport(token string, opts ...TelegramOption) *TelegramTransport {
	t := &TelegramTransport{
		token:   token,
		baseURL: defaultTelegramAPI,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send posts text to the chat identified by recipient.
func (t *TelegramTransport) Send(ctx context.Context, recipient, text string, mode Mode) error {
	body, err := json.Marshal(telegramSendMessage{
		ChatID:    recipient,
		Text:      text,
		ParseMode: string(mode),
	})
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		t.baseURL+"/bot"+t.token+"/sendMessage",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	metrics.NotificationDuration.WithLabelValues("telegram").Observe(time.Since(start).Seconds())
	if err != nil {
		// The request URL carries the bot token; keep it out of the error.
		return fmt.Errorf("sending telegram message: %w", redactToken(err, t.token))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram returned %d (body unreadable)", resp.StatusCode)
	}

	var tr telegramResponse
	_ = json.Unmarshal(respBody, &tr)

	if resp.StatusCode == http.StatusTooManyRequests {
		if tr.Parameters != nil && tr.Parameters.RetryAfter > 0 {
			return fmt.Errorf("telegram rate limited (429), retry after %ds", tr.Parameters.RetryAfter)
		}
		return fmt.Errorf("telegram rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !tr.OK {
		if tr.Description != "" {
			return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, tr.Description)
		}
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}
