package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logged wraps a handler in RequestLog and returns the log buffer and a
// function that performs one request against it.
func logged(h echo.HandlerFunc) (*bytes.Buffer, func(method, path string, hdr http.Header) (*httptest.ResponseRecorder, echo.Context)) {
	var buf bytes.Buffer
	e := echo.New()
	handler := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))(h)

	do := func(method, path string, hdr http.Header) (*httptest.ResponseRecorder, echo.Context) {
		req := httptest.NewRequest(method, path, http.NoBody)
		for k, v := range hdr {
			req.Header[k] = v
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		_ = handler(c)
		return rec, c
	}
	return &buf, do
}

func TestRequestLog_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		handler echo.HandlerFunc
		header  http.Header
		want    []string
	}{
		{
			name:    "generated request id",
			method:  http.MethodGet,
			handler: func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			want:    []string{"level=INFO", "method=GET", "path=/api/v1/subscriptions", "status=200", "duration_ms=", "request_id="},
		},
		{
			name:    "client request id is kept",
			method:  http.MethodGet,
			handler: func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			header:  http.Header{requestIDHeader: {"sub-list-1"}},
			want:    []string{"request_id=sub-list-1"},
		},
		{
			name:    "client error logs at warn",
			method:  http.MethodPost,
			handler: func(c echo.Context) error { return c.NoContent(http.StatusUnprocessableEntity) },
			want:    []string{"level=WARN", "method=POST", "status=422"},
		},
		{
			name:    "returned http error uses its code",
			method:  http.MethodPost,
			handler: func(echo.Context) error { return echo.NewHTTPError(http.StatusConflict, "busy") },
			want:    []string{"level=WARN", "status=409"},
		},
		{
			name:    "plain error logs at error with message",
			method:  http.MethodDelete,
			handler: func(echo.Context) error { return errors.New("store unavailable") },
			want:    []string{"level=ERROR", "status=500", `error="store unavailable"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf, do := logged(tt.handler)
			rec, c := do(tt.method, "/api/v1/subscriptions", tt.header)

			for _, field := range tt.want {
				assert.Contains(t, buf.String(), field)
			}

			id := rec.Header().Get(requestIDHeader)
			require.NotEmpty(t, id)
			assert.Equal(t, id, RequestID(c))
			if got := tt.header.Get(requestIDHeader); got != "" {
				assert.Equal(t, got, id)
			}
		})
	}
}

func TestRequestLog_TraceID(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	var buf bytes.Buffer
	e := echo.New()
	handler := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	ctx, span := tp.Tracer("test").Start(t.Context(), "req")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", http.NoBody).WithContext(ctx)
	require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))

	assert.Contains(t, buf.String(), "trace_id="+span.SpanContext().TraceID().String())
}

func TestRequestLog_ProbeSuppression(t *testing.T) {
	t.Parallel()

	// Each step is one probe request; logged reports whether it should
	// produce a line.
	type step struct {
		status int
		logged bool
	}

	tests := []struct {
		name  string
		path  string
		steps []step
	}{
		{
			name:  "healthz logs first success only",
			path:  "/healthz",
			steps: []step{{200, true}, {200, false}, {200, false}},
		},
		{
			name:  "readyz failures always log",
			path:  "/readyz",
			steps: []step{{503, true}, {503, true}},
		},
		{
			name:  "readyz recovery logs again",
			path:  "/readyz",
			steps: []step{{200, true}, {200, false}, {503, true}, {200, true}, {200, false}},
		},
		{
			name:  "api paths are never suppressed",
			path:  "/api/v1/subscriptions",
			steps: []step{{200, true}, {200, true}},
		},
		{
			name:  "metrics scrapes are never suppressed",
			path:  "/metrics",
			steps: []step{{200, true}, {200, true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			i := 0
			buf, do := logged(func(c echo.Context) error {
				return c.NoContent(tt.steps[i].status)
			})

			for ; i < len(tt.steps); i++ {
				before := buf.Len()
				do(http.MethodGet, tt.path, nil)
				line := buf.String()[before:]

				if !tt.steps[i].logged {
					assert.Empty(t, line, "step %d", i)
					continue
				}
				assert.Contains(t, line, "path="+tt.path, "step %d", i)
				if tt.steps[i].status >= 500 {
					assert.True(t, strings.Contains(line, "level=WARN"), "probe failure should log at warn: %s", line)
				}
			}
		})
	}
}
