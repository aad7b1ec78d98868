package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Transport, Notifier and OperatorAlerter by
// logging discarded messages. It is used when Telegram or Discord is not
// configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log line.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Send logs and discards a message.
func (n *NoOpNotifier) Send(_ context.Context, recipient, text string, _ Mode) error {
	n.log.Debug("message discarded (no transport configured)",
		"recipient", recipient,
		"length", len(text),
	)
	return nil
}

// Notify logs and discards an owner's changes.
func (n *NoOpNotifier) Notify(_ context.Context, owner string, items []Item) error {
	n.log.Debug("notification discarded (no transport configured)",
		"owner", owner,
		"count", len(items),
	)
	return nil
}

// AlertFailureStreaks logs and discards operator alerts.
func (n *NoOpNotifier) AlertFailureStreaks(_ context.Context, alerts []StreakAlert) error {
	for i := range alerts {
		n.log.Warn("failure streak alert discarded (no operator channel configured)",
			"subscription", alerts[i].Subscription.ID,
			"url", alerts[i].Subscription.URL,
			"failures", alerts[i].Failures,
		)
	}
	return nil
}
