// Package middleware provides Echo middleware for price-monitor.
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/price-monitor/internal/metrics"
)

// unmatchedRoute labels requests that hit no registered route.
const unmatchedRoute = "unmatched"

// probeGauges lists the operational paths kept out of the request
// histogram. Probes map to an up/down gauge; /metrics maps to nil.
var probeGauges = map[string]prometheus.Gauge{
	"/metrics": nil,
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

// Metrics returns Echo middleware that records request duration, count and
// concurrency, labelled by route template so cardinality stays bounded.
// A manual poll cycle holds its request open for the whole cycle, which
// shows up in the in-flight gauge and the duration histogram.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}

			if gauge, probe := probeGauges[route]; probe {
				err := next(c)
				if gauge != nil {
					gauge.Set(upValue(statusOf(c, err)))
				}
				return err
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			status := strconv.Itoa(statusOf(c, err))
			method := c.Request().Method
			metrics.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(elapsed)
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()

			return err
		}
	}
}

// statusOf returns the status the client will see. A handler error is not
// written until Echo's error handler runs after the middleware chain, so
// the recorded response status is still the 200 default at this point.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func upValue(status int) float64 {
	if status >= 200 && status < 300 {
		return 1
	}
	return 0
}
