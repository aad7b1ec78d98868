// Package handlers implements HTTP handlers for the price-monitor API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// readyTimeout bounds each dependency ping during a readiness probe.
const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	names []string
	deps  map[string]Pinger
}

// NewHealthHandler creates a HealthHandler whose readiness depends on the
// store. Further dependencies are added with Require.
func NewHealthHandler(store Pinger) *HealthHandler {
	return (&HealthHandler{deps: map[string]Pinger{}}).Require("store", store)
}

// Require adds a named dependency to the readiness probe.
func (h *HealthHandler) Require(name string, p Pinger) *HealthHandler {
	if _, dup := h.deps[name]; !dup {
		h.names = append(h.names, name)
	}
	h.deps[name] = p
	return h
}

// Healthz returns 200 while the process is serving.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz pings every dependency and returns 503 if any is unreachable.
func (h *HealthHandler) Readyz(c echo.Context) error {
	resp := StatusResponse{Status: "ready", Checks: make(map[string]string, len(h.names))}
	code := http.StatusOK

	for _, name := range h.names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		err := h.deps[name].Ping(ctx)
		cancel()

		if err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}

// Register mounts the probes on the echo server outside the Huma API.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}
