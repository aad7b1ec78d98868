package rules

// AlertRules returns the operational alerts for the price monitor.
func AlertRules() PrometheusRule {
	return newPrometheusRule("pm-alerts", RuleGroup{
		Name: "pm-alerts",
		Rules: []Rule{
			alert("PmDown",
				`absent(up{job="price-monitor"})`, "2m", "critical",
				"Price monitor is down",
				"The price-monitor job has been absent for more than 2 minutes."),
			alert("PmReadinessDown",
				`pm_readyz_up == 0`, "2m", "critical",
				"Price monitor readiness check is failing",
				"The readiness probe has been reporting not-ready for more than 2 minutes."),
			alert("PmHighErrorRate",
				`pm:http_errors:rate5m / pm:http_requests:rate5m > 0.05`, "5m", "warning",
				"High HTTP error rate on the price monitor",
				"More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes."),
			alert("PmPollStalled",
				`increase(pm_cycles_total{status="succeeded"}[1h]) == 0`, "30m", "critical",
				"No poll cycle has succeeded in the last hour",
				"Poll cycles are failing or not being scheduled. Check the poll_cycle job history."),
			alert("PmExtractionFailureRatio",
				`pm:extraction_failure_ratio:rate1h > 0.5`, "30m", "warning",
				"Most price extractions are failing",
				"More than half of subscription checks failed to extract a price over the last hour. "+
					"A shop layout may have changed."),
			alert("PmStoreErrors",
				`increase(pm_store_errors_total[15m]) > 0`, "0m", "critical",
				"Store writes are failing",
				"Observations could not be persisted during reconciliation."),
			alert("PmNotificationFailures",
				`increase(pm_notification_failures_total[5m]) > 0`, "1m", "warning",
				"Notification delivery failures detected",
				"One or more price change notifications have failed to send."),
		},
	})
}
