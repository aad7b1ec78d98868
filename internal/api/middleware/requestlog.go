package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID returns the ID RequestLog assigned to the request, or "".
func RequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// probeLog remembers whether each probe path last succeeded. Repeated
// successes are not logged; failures and recoveries are.
type probeLog struct {
	mu   sync.Mutex
	last map[string]bool
}

func (p *probeLog) suppress(path string, ok bool) bool {
	if _, probe := probeGauges[path]; !probe || path == "/metrics" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.last[path]
	p.last[path] = ok
	return ok && prev
}

// RequestLog returns Echo middleware that logs one structured line per
// request. It assigns a request ID when the client sent none, echoes it in
// X-Request-ID and adds the trace ID when the request is traced.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	probes := &probeLog{last: make(map[string]bool)}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			id := req.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(requestIDKey, id)
			c.Response().Header().Set(requestIDHeader, id)

			err := next(c)

			path := req.URL.Path
			status := statusOf(c, err)
			if probes.suppress(path, status < 400) {
				return err
			}

			attrs := []any{
				"method", req.Method,
				"path", path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", id,
			}
			if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}
			if err != nil && status >= 500 {
				attrs = append(attrs, "error", err.Error())
			}

			log.Log(req.Context(), levelFor(path, status), "request", attrs...)
			return err
		}
	}
}

// levelFor maps a response status to a log level. Failing probes log at
// warn since the orchestrator already acts on them.
func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		if _, probe := probeGauges[path]; probe {
			return slog.LevelWarn
		}
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
