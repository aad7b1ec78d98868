package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// CycleDuration returns a timeseries panel showing poll cycle duration
// percentiles.
func CycleDuration() *timeseries.PanelBuilder {
	return timeSeries("Cycle Duration", "Poll cycle duration percentiles").
		WithTarget(PromQuery(quantile(0.50, "pm_cycle_duration_seconds_bucket"), "p50", "A")).
		WithTarget(PromQuery(quantile(0.95, "pm_cycle_duration_seconds_bucket"), "p95", "B")).
		Unit("s").
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip())
}

// CycleOutcomes returns a timeseries panel showing completed cycles by status.
func CycleOutcomes() *timeseries.PanelBuilder {
	return timeSeries("Cycles", "Completed poll cycles per hour by status").
		WithTarget(PromQuery(
			`sum(increase(pm_cycles_total`+jobSel()+`[1h])) by (status)`,
			"{{status}}", "A",
		)).
		Tooltip(MultiTooltip()).
		DrawStyle(common.GraphDrawStyleBars)
}

// ChecksRate returns a timeseries panel showing the subscription check rate.
func ChecksRate() *timeseries.PanelBuilder {
	return timeSeries("Checks Rate", "Subscription checks per second").
		WithTarget(PromQuery(`pm:subscriptions_checked:rate5m`, "checks/s", "A"))
}

// NextPoll returns a stat panel showing time until the next scheduled cycle.
func NextPoll() *stat.PanelBuilder {
	return statPanel("Next Poll", "Time until the next scheduled poll cycle").
		WithTarget(PromQuery(`pm_scheduler_next_poll_timestamp`+jobSel()+` - time()`, "", "A")).
		Unit("s")
}

// CycleStateStat returns a stat panel showing the current cycle phase.
func CycleStateStat() *stat.PanelBuilder {
	return statPanel("Cycle State", "0 idle, 1 loading, 2 fetching, 3 reconciling, 4 notifying").
		WithTarget(PromQuery(`pm_cycle_state`+jobSel(), "", "A")).
		TextMode(common.BigValueTextModeValue)
}
