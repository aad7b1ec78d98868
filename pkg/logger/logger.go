// Package logger builds the service's slog.Logger. Attributes whose key
// names a credential are redacted before they reach the handler, as are
// passwords embedded in URL values and Telegram bot tokens in API paths.
package logger

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively against attribute keys.
var sensitiveKeys = map[string]struct{}{
	"password":    {},
	"token":       {},
	"bot_token":   {},
	"webhook_url": {},
	"dsn":         {},
	"redis_url":   {},
}

// New creates a *slog.Logger configured with the given level and format.
// Level: "debug", "info", "warn", "error" (default: "info").
// Format: "json" or "text" (default: "text").
// Output goes to stderr.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a *slog.Logger writing to w.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Component returns l tagged with the subsystem name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level string to slog.Level.
// Recognized values: "debug", "warn", "warning", "error". Everything else
// returns LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// botPath matches the token segment of a Telegram Bot API path.
var botPath = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	v := a.Value.String()
	if strings.Contains(v, "://") {
		if u, err := url.Parse(v); err == nil && u.User != nil {
			v = u.Redacted()
		}
	}
	if strings.Contains(v, "/bot") {
		v = botPath.ReplaceAllString(v, "/bot"+Redacted)
	}
	return slog.String(a.Key, v)
}
