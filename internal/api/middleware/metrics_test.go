package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/donaldgifford/price-monitor/internal/api/middleware"
	"github.com/donaldgifford/price-monitor/internal/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		handler    echo.HandlerFunc
		wantStatus int
	}{
		{
			name:   "records 200 response",
			method: http.MethodGet,
			path:   "/api/v1/subscriptions",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, []string{})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "records 404 response",
			method: http.MethodGet,
			path:   "/notfound",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "records status of a returned error",
			method: http.MethodGet,
			path:   "/api/v1/subscriptions/:id",
			handler: func(_ echo.Context) error {
				return echo.NewHTTPError(http.StatusConflict, "busy")
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "plain error counts as 500",
			method: http.MethodDelete,
			path:   "/api/v1/owners/:owner/subscriptions",
			handler: func(_ echo.Context) error {
				return errors.New("boom")
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "records POST request",
			method: http.MethodPost,
			path:   "/api/v1/check",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusAccepted)
			},
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(mw.Metrics())
			e.Add(tt.method, tt.path, tt.handler)

			target := strings.NewReplacer(":id", "abc", ":owner", "42").Replace(tt.path)
			req := httptest.NewRequest(tt.method, target, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			statusStr := strconv.Itoa(tt.wantStatus)

			// Verify the counter was incremented.
			counter, err := metrics.HTTPRequestsTotal.GetMetricWithLabelValues(
				tt.method, tt.path, statusStr,
			)
			require.NoError(t, err)

			m := &io_prometheus_client.Metric{}
			require.NoError(t, counter.Write(m))
			assert.Greater(t, m.GetCounter().GetValue(), float64(0))

			// Verify histogram was observed.
			observer, err := metrics.HTTPRequestDuration.GetMetricWithLabelValues(
				tt.method, tt.path, statusStr,
			)
			require.NoError(t, err)

			hm := &io_prometheus_client.Metric{}
			require.NoError(t, observer.(prometheus.Metric).Write(hm))
			assert.Positive(t, hm.GetHistogram().GetSampleCount())
		})
	}
}

func TestMetricsMiddleware_HealthGauges(t *testing.T) {
	e := echo.New()
	e.Use(mw.Metrics())

	healthy := true
	e.GET("/readyz", func(c echo.Context) error {
		if healthy {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ReadyzUp), 0.001)

	healthy = false
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.ReadyzUp), 0.001)
}

func TestMetricsMiddleware_HealthGaugeFromReturnedError(t *testing.T) {
	e := echo.New()
	e.Use(mw.Metrics())
	e.GET("/healthz", func(_ echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.HealthzUp), 0.001)
}

func TestMetricsMiddleware_InFlightReturnsToZero(t *testing.T) {
	e := echo.New()
	e.Use(mw.Metrics())

	var during float64
	e.POST("/api/v1/check", func(c echo.Context) error {
		during = testutil.ToFloat64(metrics.HTTPRequestsInFlight)
		return c.NoContent(http.StatusOK)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsInFlight)
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/check", http.NoBody))

	assert.GreaterOrEqual(t, during, before+1)
	assert.InDelta(t, before, testutil.ToFloat64(metrics.HTTPRequestsInFlight), 0.001)
}
