package main

import "errors"

// KnownMetrics is the set of metric names exported by price-monitor
// plus recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"pm_http_request_duration_seconds_bucket": true,
	"pm_http_requests_total":                  true,

	// Health metrics.
	"pm_healthz_up": true,
	"pm_readyz_up":  true,

	// Poll cycle metrics.
	"pm_cycle_duration_seconds_bucket": true,
	"pm_cycles_total":                  true,
	"pm_cycle_state":                   true,
	"pm_subscriptions_checked_total":   true,
	"pm_active_subscriptions":          true,
	"pm_store_errors_total":            true,
	"pm_scheduler_next_poll_timestamp": true,

	// Extraction metrics.
	"pm_extraction_duration_seconds_bucket": true,
	"pm_extraction_failures_total":          true,

	// Change and notification metrics.
	"pm_price_changes_total":                  true,
	"pm_notifications_sent_total":             true,
	"pm_notification_failures_total":          true,
	"pm_notification_duration_seconds_bucket": true,
	"pm_operator_alerts_total":                true,

	// Recording rules.
	"pm:http_requests:rate5m":            true,
	"pm:http_errors:rate5m":              true,
	"pm:subscriptions_checked:rate5m":    true,
	"pm:extraction_failures:rate5m":      true,
	"pm:extraction_failure_ratio:rate1h": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
	// PlainRules also writes each rule set as a bare Prometheus rules file
	// for deployments that do not run the operator.
	PlainRules bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
		PlainRules:       true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
