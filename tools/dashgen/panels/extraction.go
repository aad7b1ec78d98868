package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// ExtractionDuration returns a timeseries panel showing p95 extraction
// latency per site.
func ExtractionDuration() *timeseries.PanelBuilder {
	return timeSeries("Extraction Duration (p95)", "Page render and price extraction duration by site").
		WithTarget(PromQuery(
			quantile(0.95, "pm_extraction_duration_seconds_bucket", "site"),
			"{{site}}", "A",
		)).
		Unit("s").
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip())
}

// ExtractionFailures returns a timeseries panel showing the extraction
// failure rate by site and kind.
func ExtractionFailures() *timeseries.PanelBuilder {
	return timeSeries("Extraction Failures", "Extraction failures per second by site and kind").
		WithTarget(PromQuery(
			`sum(rate(pm_extraction_failures_total`+jobSel()+`[5m])) by (site, kind)`,
			"{{site}} {{kind}}", "A",
		)).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenYellowRed(0.01, 0.1))
}
