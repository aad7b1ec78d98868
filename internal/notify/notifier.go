// Package notify defines the notification interfaces and implementations
// for delivering price change messages to subscribers and failure alerts
// to the operator.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Mode selects how the transport interprets message text.
type Mode string

// Mode constants. The values match Telegram parse modes.
const (
	ModePlain Mode = ""
	ModeHTML  Mode = "HTML"
)

// Transport delivers a single text message to a recipient.
type Transport interface {
	Send(ctx context.Context, recipient, text string, mode Mode) error
}

// Item is one notifiable change for one subscription.
type Item struct {
	Subscription domain.Subscription
	Event        domain.ChangeEvent
}

// Notifier delivers the changes of one cycle to one owner.
type Notifier interface {
	Notify(ctx context.Context, owner string, items []Item) error
}

// StreakAlert reports a subscription whose extraction keeps failing.
type StreakAlert struct {
	Subscription domain.Subscription
	Failures     int
	Reason       string
}

// OperatorAlerter delivers failure streak alerts to the operator channel.
type OperatorAlerter interface {
	AlertFailureStreaks(ctx context.Context, alerts []StreakAlert) error
}

// MessageNotifier implements Notifier by formatting items into text
// messages and sending them through a Transport.
type MessageNotifier struct {
	transport Transport
	mode      Mode
	maxLen    int
	log       *slog.Logger
}

// MessageOption configures a MessageNotifier.
type MessageOption func(*MessageNotifier)

// WithMode sets the message markup mode. Any mode other than ModeHTML is
// sent as plain text.
func WithMode(m Mode) MessageOption {
	return func(n *MessageNotifier) {
		n.mode = m
	}
}

// WithMaxMessageLength sets the longest message the transport accepts.
func WithMaxMessageLength(l int) MessageOption {
	return func(n *MessageNotifier) {
		n.maxLen = l
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) MessageOption {
	return func(n *MessageNotifier) {
		n.log = l
	}
}

// NewMessageNotifier creates a MessageNotifier on t.
func NewMessageNotifier(t Transport, opts ...MessageOption) *MessageNotifier {
	n := &MessageNotifier{
		transport: t,
		mode:      ModeHTML,
		maxLen:    telegramMaxMessageLength,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.mode != ModeHTML {
		n.mode = ModePlain
	}
	return n
}

// Notify sends one coalesced message for items, split into several only
// when it exceeds the transport's length limit. Items keep their order.
func (n *MessageNotifier) Notify(ctx context.Context, owner string, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	for i, msg := range formatMessages(items, n.mode, n.maxLen) {
		if err := n.transport.Send(ctx, owner, msg, n.mode); err != nil {
			return fmt.Errorf("sending message %d to %s: %w", i+1, owner, err)
		}
	}

	n.log.Debug("notification sent", "owner", owner, "items", len(items))
	return nil
}
