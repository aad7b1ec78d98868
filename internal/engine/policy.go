package engine

import domain "github.com/donaldgifford/price-monitor/pkg/types"

// Policy decides which change events reach subscribers and when failing
// subscriptions are reported to the operator.
type Policy struct {
	NotifyIncrease bool
	NotifyDecrease bool
	// FailureStreakThreshold is the number of consecutive extraction
	// failures that triggers one operator alert. Zero disables alerts.
	FailureStreakThreshold int
}

// DefaultPolicy notifies on every price movement and alerts the operator
// after three consecutive failures.
func DefaultPolicy() Policy {
	return Policy{
		NotifyIncrease:         true,
		NotifyDecrease:         true,
		FailureStreakThreshold: 3,
	}
}

// ShouldNotify reports whether ev is sent to the subscriber. Baseline
// events are never sent.
func (p Policy) ShouldNotify(ev *domain.ChangeEvent) bool {
	if ev.Baseline {
		return false
	}
	switch ev.Classification {
	case domain.ClassThresholdCrossed:
		return true
	case domain.ClassIncreased:
		return p.NotifyIncrease
	case domain.ClassDecreased:
		return p.NotifyDecrease
	default:
		return false
	}
}

// ShouldAlertStreak reports whether a streak of the given length triggers
// an operator alert. Only the exact threshold alerts, so a streak is
// reported once until it is reset by a successful check.
func (p Policy) ShouldAlertStreak(failures int) bool {
	return p.FailureStreakThreshold > 0 && failures == p.FailureStreakThreshold
}

// shouldArchive reports whether ev is written to the price history.
func shouldArchive(ev *domain.ChangeEvent) bool {
	return ev.Baseline || ev.Changed() || ev.Classification == domain.ClassExtractionFailed
}
