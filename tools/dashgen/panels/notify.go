package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// PriceChanges returns a timeseries panel showing classified observations
// per hour, excluding unchanged ones.
func PriceChanges() *timeseries.PanelBuilder {
	return timeSeries("Price Changes", "Classified observations per hour by classification").
		WithTarget(PromQuery(
			`sum(increase(pm_price_changes_total`+jobSel(`classification!="unchanged"`)+`[1h])) by (classification)`,
			"{{classification}}", "A",
		)).
		Tooltip(MultiTooltip()).
		DrawStyle(common.GraphDrawStyleBars)
}

// NotificationsRate returns a timeseries panel showing delivered
// notifications and operator alerts.
func NotificationsRate() *timeseries.PanelBuilder {
	return timeSeries("Notifications", "Delivered owner notifications and operator alerts per hour").
		WithTarget(PromQuery(`increase(pm_notifications_sent_total`+jobSel()+`[1h])`, "sent", "A")).
		WithTarget(PromQuery(`increase(pm_operator_alerts_total`+jobSel()+`[1h])`, "operator alerts", "B")).
		Tooltip(MultiTooltip())
}

// NotificationLatency returns a timeseries panel showing the p95 transport
// latency per notification channel.
func NotificationLatency() *timeseries.PanelBuilder {
	return timeSeries("Notification Latency (p95)", "95th percentile transport request latency").
		WithTarget(PromQuery(
			quantile(0.95, "pm_notification_duration_seconds_bucket", "transport"),
			"{{transport}}", "A",
		)).
		Unit("s").
		Thresholds(ThresholdsGreenYellowRed(1, 5))
}

// NotificationFailures returns a stat panel showing notification failures
// in the past 24 hours.
func NotificationFailures() *stat.PanelBuilder {
	return statPanel("Notification Failures (24h)", "Failed notification deliveries in the last 24 hours").
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(pm_notification_failures_total`+jobSel()+`[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// StoreErrors returns a timeseries panel showing store write failures by
// operation.
func StoreErrors() *timeseries.PanelBuilder {
	return timeSeries("Store Errors", "Store write failures during reconciliation by operation").
		WithTarget(PromQuery(
			`sum(rate(pm_store_errors_total`+jobSel()+`[5m])) by (operation)`,
			"{{operation}}", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(0.001, 0.01))
}
