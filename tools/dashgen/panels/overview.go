package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
)

// HealthzStat returns a stat panel showing the health check status.
func HealthzStat() *stat.PanelBuilder {
	return statPanel("Healthz", "Health check status (1 = ok, 0 = failing)").
		WithTarget(PromQuery(`pm_healthz_up`, "", "A")).
		Thresholds(ThresholdsRedGreen(1)).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

// ReadyzStat returns a stat panel showing the readiness check status.
func ReadyzStat() *stat.PanelBuilder {
	return statPanel("Readyz", "Readiness check status (1 = ready, 0 = not ready)").
		WithTarget(PromQuery(`pm_readyz_up`, "", "A")).
		Thresholds(ThresholdsRedGreen(1)).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

// ActiveSubscriptionsStat returns a stat panel showing how many
// subscriptions the last cycle polled.
func ActiveSubscriptionsStat() *stat.PanelBuilder {
	return statPanel("Active Subscriptions", "Active subscriptions in the last cycle snapshot").
		WithTarget(PromQuery(`pm_active_subscriptions`+jobSel(), "", "A")).
		Thresholds(ThresholdsGreenOnly()).
		GraphMode(common.BigValueGraphModeArea)
}

// UptimeStat returns a stat panel showing process uptime.
func UptimeStat() *stat.PanelBuilder {
	return statPanel("Uptime", "Time since process start").
		WithTarget(PromQuery(`time() - process_start_time_seconds`+jobSel(), "", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenOnly())
}
