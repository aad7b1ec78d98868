// Package metrics defines Prometheus metrics for price-monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pm"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served, excluding probes and scrapes.",
	})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 if the last /healthz probe succeeded, 0 otherwise.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 if the last /readyz probe succeeded, 0 otherwise.",
	})
)

// Poll cycle metrics.
var (
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of poll cycles in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Total number of poll cycles by outcome.",
	}, []string{"status"})

	CycleState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cycle_state",
		Help:      "Current poll cycle state (0 idle, 1 loading, 2 fetching, 3 reconciling, 4 notifying).",
	})

	SubscriptionsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriptions_checked_total",
		Help:      "Total number of subscription checks performed.",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions",
		Help:      "Number of active subscriptions in the last cycle snapshot.",
	})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Total number of store write failures during reconciliation.",
	}, []string{"operation"})
)

// Extraction metrics.
var (
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Duration of price extractions in seconds.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"site"})

	ExtractionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_failures_total",
		Help:      "Total number of extraction failures by site and kind.",
	}, []string{"site", "kind"})
)

// Change and notification metrics.
var (
	PriceChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_changes_total",
		Help:      "Total number of classified observations by classification.",
	}, []string{"classification"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Total number of notification messages delivered.",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total number of notification send failures.",
	})

	NotificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of notification transport requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport"})

	OperatorAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operator_alerts_total",
		Help:      "Total number of failure streak alerts sent to the operator channel.",
	})
)

// Scheduler metrics.
var (
	SchedulerNextPollTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_next_poll_timestamp",
		Help:      "Unix timestamp of the next scheduled poll cycle.",
	})
)
