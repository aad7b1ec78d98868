package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/donaldgifford/price-monitor/internal/metrics"
)

const (
	colorRed    = 0xE74C3C
	colorYellow = 0xF1C40F

	// Discord webhook limits.
	discordMaxEmbeds     = 10
	discordMaxFieldValue = 1024
)

// DiscordNotifier implements OperatorAlerter by posting embeds to a
// Discord webhook, one embed per failing subscription.
type DiscordNotifier struct {
	webhookURL string
	username   string
	mention    string
	client     *http.Client
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// WithUsername overrides the webhook's display name.
func WithUsername(name string) DiscordOption {
	return func(d *DiscordNotifier) {
		d.username = name
	}
}

// WithMention prefixes every alert with mention, e.g. "<@&123>" for a role.
func WithMention(mention string) DiscordOption {
	return func(d *DiscordNotifier) {
		d.mention = mention
	}
}

// NewDiscordNotifier creates a DiscordNotifier posting to webhookURL.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// RateLimitedError is returned when Discord answers 429. RetryAfter is
// zero when the response carried no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("discord rate limited (429), retry after %s", e.RetryAfter)
	}
	return "discord rate limited (429)"
}

// AlertFailureStreaks posts all alerts in one message. Past the embed limit
// the last embed summarizes how many were left out.
func (d *DiscordNotifier) AlertFailureStreaks(ctx context.Context, alerts []StreakAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	embeds := make([]discordEmbed, 0, min(len(alerts), discordMaxEmbeds))
	for i := range alerts {
		if len(embeds) == discordMaxEmbeds-1 && len(alerts) > discordMaxEmbeds {
			embeds = append(embeds, discordEmbed{
				Title:       fmt.Sprintf("... and %d more failing subscriptions", len(alerts)-i),
				Color:       colorYellow,
				Description: "Check the subscription list for the full set.",
			})
			break
		}
		embeds = append(embeds, streakEmbed(&alerts[i]))
	}

	payload := discordWebhookPayload{Username: d.username, Embeds: embeds}
	if d.mention != "" {
		payload.Content = d.mention + " " + strconv.Itoa(len(alerts)) + " subscription(s) keep failing extraction"
	}
	return d.post(ctx, &payload)
}

func streakEmbed(a *StreakAlert) discordEmbed {
	reason := a.Reason
	if reason == "" {
		reason = "unknown"
	}
	return discordEmbed{
		Title: "Price extraction failing: " + string(a.Subscription.Site),
		URL:   a.Subscription.URL,
		Color: colorRed,
		Fields: []discordEmbedField{
			{Name: "Owner", Value: a.Subscription.Owner, Inline: true},
			{Name: "Consecutive failures", Value: strconv.Itoa(a.Failures), Inline: true},
			{Name: "Subscription", Value: a.Subscription.ID, Inline: true},
			{Name: "Last error", Value: clip(reason, discordMaxFieldValue)},
		},
	}
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func (d *DiscordNotifier) post(ctx context.Context, payload *discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.NotificationDuration.WithLabelValues("discord").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// retryAfter parses a Retry-After header in (possibly fractional) seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
