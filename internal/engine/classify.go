package engine

import (
	"time"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Classify compares an observation with the previously known price and
// the subscription's target. It is a pure function of its arguments.
//
// A nil previous price marks the first reading: the event is a baseline
// and classified unchanged, unless the reading is already at or below the
// target, which counts as a crossing from above. A failed observation is
// classified extraction_failed and carries no new price.
func Classify(
	previous *domain.Price,
	target *domain.Price,
	obs domain.PriceObservation,
	now time.Time,
) domain.ChangeEvent {
	ev := domain.ChangeEvent{
		Previous:    clonePrice(previous),
		Baseline:    previous == nil,
		GeneratedAt: now,
	}

	if !obs.Success {
		ev.Classification = domain.ClassExtractionFailed
		ev.FailureReason = obs.FailureReason
		return ev
	}

	cur := obs.Price
	ev.New = &cur

	crossed := target != nil && cur <= *target && (previous == nil || *previous > *target)

	switch {
	case crossed:
		ev.Classification = domain.ClassThresholdCrossed
	case previous == nil:
		ev.Classification = domain.ClassUnchanged
	case cur > *previous:
		ev.Classification = domain.ClassIncreased
	case cur < *previous:
		ev.Classification = domain.ClassDecreased
	default:
		ev.Classification = domain.ClassUnchanged
	}

	return ev
}

func clonePrice(p *domain.Price) *domain.Price {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
