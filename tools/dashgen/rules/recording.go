package rules

// RecordingRules returns the pre-computed rate expressions used by the
// dashboard and the alert rules.
func RecordingRules() PrometheusRule {
	return newPrometheusRule("pm-recording-rules", RuleGroup{
		Name: "pm-recording",
		Rules: []Rule{
			{
				Record: "pm:http_requests:rate5m",
				Expr:   `sum(rate(pm_http_requests_total[5m]))`,
			},
			{
				Record: "pm:http_errors:rate5m",
				Expr:   `sum(rate(pm_http_requests_total{status=~"5.."}[5m]))`,
			},
			{
				Record: "pm:subscriptions_checked:rate5m",
				Expr:   `rate(pm_subscriptions_checked_total[5m])`,
			},
			{
				Record: "pm:extraction_failures:rate5m",
				Expr:   `sum(rate(pm_extraction_failures_total[5m]))`,
			},
			{
				Record: "pm:extraction_failure_ratio:rate1h",
				Expr: `sum(rate(pm_extraction_failures_total[1h])) / ` +
					`sum(rate(pm_subscriptions_checked_total[1h]))`,
			},
		},
	})
}
