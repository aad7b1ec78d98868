package engine

import (
	"context"

	"github.com/donaldgifford/price-monitor/internal/metrics"
	"github.com/donaldgifford/price-monitor/internal/notify"
)

// ownerBatch holds one owner's notifiable items in poll order.
type ownerBatch struct {
	owner string
	items []notify.Item
}

// dispatch sends one coalesced notification per owner and returns the
// number of items delivered. Failed deliveries are logged and counted;
// prices are already persisted and stay that way.
func (eng *Engine) dispatch(ctx context.Context, batches []ownerBatch) int {
	delivered := 0

	for _, b := range batches {
		if err := eng.notifier.Notify(ctx, b.owner, b.items); err != nil {
			metrics.NotificationFailuresTotal.Inc()
			eng.log.Error("notification failed",
				"owner", b.owner,
				"items", len(b.items),
				"error", err,
			)
			continue
		}

		metrics.NotificationsSentTotal.Inc()
		delivered += len(b.items)
	}

	return delivered
}

// alertOperator reports subscriptions whose failure streak reached the
// policy threshold.
func (eng *Engine) alertOperator(ctx context.Context, alerts []notify.StreakAlert) {
	if len(alerts) == 0 {
		return
	}

	for i := range alerts {
		eng.log.Warn("subscription failing repeatedly",
			"subscription", alerts[i].Subscription.ID,
			"url", alerts[i].Subscription.URL,
			"failures", alerts[i].Failures,
		)
	}

	if eng.operator == nil {
		return
	}

	if err := eng.operator.AlertFailureStreaks(ctx, alerts); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		eng.log.Error("operator alert failed", "alerts", len(alerts), "error", err)
		return
	}

	metrics.OperatorAlertsTotal.Add(float64(len(alerts)))
}
