package panels

import (
	"fmt"
	"strings"

	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate returns a timeseries panel showing the HTTP request rate.
func RequestRate() *timeseries.PanelBuilder {
	return timeSeries("Request Rate", "HTTP requests per second").
		WithTarget(PromQuery(`pm:http_requests:rate5m`, "req/s", "A")).
		Unit("reqps").
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip())
}

// LatencyPercentiles returns a timeseries panel showing p50, p95, and p99
// HTTP request latencies.
func LatencyPercentiles() *timeseries.PanelBuilder {
	return timeSeries("Latency Percentiles", "HTTP request duration percentiles").
		WithTarget(PromQuery(quantile(0.50, "pm_http_request_duration_seconds_bucket"), "p50", "A")).
		WithTarget(PromQuery(quantile(0.95, "pm_http_request_duration_seconds_bucket"), "p95", "B")).
		WithTarget(PromQuery(quantile(0.99, "pm_http_request_duration_seconds_bucket"), "p99", "C")).
		Unit("s").
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip())
}

// ErrorRate returns a timeseries panel showing the HTTP 5xx error rate
// as a percentage.
func ErrorRate() *timeseries.PanelBuilder {
	return timeSeries("Error Rate %", "HTTP 5xx error rate as percentage of total requests").
		WithTarget(PromQuery(
			`pm:http_errors:rate5m / pm:http_requests:rate5m * 100`,
			"error %", "A",
		)).
		Unit("percent").
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}

// quantile returns a histogram_quantile expression over bucket, scoped to Job.
func quantile(q float64, bucket string, by ...string) string {
	labels := strings.Join(append([]string{"le"}, by...), ", ")
	return fmt.Sprintf(`histogram_quantile(%.2f, sum(rate(%s%s[5m])) by (%s))`, q, bucket, jobSel(), labels)
}
