package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/price-monitor/internal/metrics"
	"github.com/donaldgifford/price-monitor/internal/notify"
	"github.com/donaldgifford/price-monitor/internal/store"
	"github.com/donaldgifford/price-monitor/internal/streak"
	"github.com/donaldgifford/price-monitor/pkg/extract"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

const (
	tracerName = "github.com/donaldgifford/price-monitor/internal/engine"

	defaultWorkers      = 4
	defaultItemTimeout  = 45 * time.Second
	defaultCycleTimeout = 4 * time.Minute
)

// ErrCycleInProgress is returned by RunCycle when another cycle is running.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

const reasonCycleDeadline = "cycle deadline exceeded"

// Engine runs poll cycles: it loads active subscriptions, extracts their
// prices on a bounded worker pool, reconciles the results into the store
// and notifies owners.
type Engine struct {
	store     store.Store
	extractor extract.Extractor
	notifier  notify.Notifier
	operator  notify.OperatorAlerter
	streaks   streak.Tracker
	log       *slog.Logger
	tracer    trace.Tracer

	policy       Policy
	workers      int
	itemTimeout  time.Duration
	cycleTimeout time.Duration
	now          func() time.Time

	// sem holds one token while a cycle runs.
	sem   chan struct{}
	state atomic.Int32
	last  atomic.Pointer[domain.CycleSummary]
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	s store.Store,
	ex extract.Extractor,
	n notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		store:        s,
		extractor:    ex,
		notifier:     n,
		streaks:      streak.NewMemoryTracker(),
		log:          slog.Default(),
		tracer:       otel.Tracer(tracerName),
		policy:       DefaultPolicy(),
		workers:      defaultWorkers,
		itemTimeout:  defaultItemTimeout,
		cycleTimeout: defaultCycleTimeout,
		now:          time.Now,
		sem:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.workers < 1 {
		eng.workers = 1
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithWorkers sets the number of concurrent extractions.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithItemTimeout bounds a single extraction.
func WithItemTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.itemTimeout = d
	}
}

// WithCycleTimeout bounds the fetching phase of a cycle. Items not done
// by then are recorded as failed.
func WithCycleTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.cycleTimeout = d
	}
}

// WithPolicy sets the notification policy.
func WithPolicy(p Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithOperatorAlerter sets where failure streak alerts are sent.
func WithOperatorAlerter(a notify.OperatorAlerter) EngineOption {
	return func(e *Engine) {
		e.operator = a
	}
}

// WithStreakTracker sets the failure streak tracker.
func WithStreakTracker(t streak.Tracker) EngineOption {
	return func(e *Engine) {
		e.streaks = t
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// State returns the current cycle state.
func (eng *Engine) State() State {
	return State(eng.state.Load())
}

// LastCycle returns the summary of the most recent completed cycle.
func (eng *Engine) LastCycle() (domain.CycleSummary, bool) {
	s := eng.last.Load()
	if s == nil {
		return domain.CycleSummary{}, false
	}
	return *s, true
}

func (eng *Engine) setState(s State) {
	eng.state.Store(int32(s))
	metrics.CycleState.Set(float64(s))
}

// RunCycle runs one poll cycle over all active subscriptions. Per-item
// failures are counted in the summary; an error is returned only when the
// cycle could not run at all.
func (eng *Engine) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	select {
	case eng.sem <- struct{}{}:
	default:
		return domain.CycleSummary{}, ErrCycleInProgress
	}
	defer func() { <-eng.sem }()
	defer eng.setState(StateIdle)

	ctx, span := eng.tracer.Start(ctx, "engine.cycle")
	defer span.End()

	summary := domain.CycleSummary{StartedAt: eng.now()}
	start := time.Now()

	err := eng.runCycle(ctx, &summary)

	summary.Duration = time.Since(start)
	metrics.CycleDuration.Observe(summary.Duration.Seconds())

	span.SetAttributes(
		attribute.Int("checked", summary.Checked),
		attribute.Int("changed", summary.Changed),
		attribute.Int("failed", summary.Failed),
		attribute.Int("notified", summary.Notified),
	)

	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		eng.log.Error("poll cycle failed", "error", err)
		return summary, err
	}

	metrics.CyclesTotal.WithLabelValues("succeeded").Inc()
	eng.last.Store(&summary)
	eng.log.Info("poll cycle complete",
		"checked", summary.Checked,
		"changed", summary.Changed,
		"failed", summary.Failed,
		"notified", summary.Notified,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (eng *Engine) runCycle(ctx context.Context, summary *domain.CycleSummary) error {
	eng.setState(StateLoading)
	subs, err := eng.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active subscriptions: %w", err)
	}
	metrics.ActiveSubscriptions.Set(float64(len(subs)))

	if len(subs) == 0 {
		eng.log.Debug("no active subscriptions")
		return nil
	}

	eng.setState(StateFetching)
	cycleCtx, cancel := context.WithTimeout(ctx, eng.cycleTimeout)
	observations := eng.fetch(cycleCtx, subs)
	cancel()

	eng.setState(StateReconciling)
	batches, alerts := eng.reconcile(ctx, subs, observations, summary)

	eng.setState(StateNotifying)
	summary.Notified = eng.dispatch(ctx, batches)
	eng.alertOperator(ctx, alerts)

	return nil
}

// fetch extracts every subscription's price on the worker pool. The result
// slice is indexed like subs.
func (eng *Engine) fetch(ctx context.Context, subs []domain.Subscription) []domain.PriceObservation {
	results := make([]domain.PriceObservation, len(subs))
	done := make([]bool, len(subs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(eng.workers, len(subs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = eng.fetchOne(ctx, &subs[i])
				done[i] = true
			}
		}()
	}

dispatch:
	for i := range subs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	for i := range subs {
		if done[i] {
			continue
		}
		metrics.ExtractionFailuresTotal.WithLabelValues(string(subs[i].Site), "deadline").Inc()
		results[i] = domain.PriceObservation{
			URL:           subs[i].URL,
			Site:          subs[i].Site,
			ObservedAt:    eng.now(),
			FailureReason: reasonCycleDeadline,
		}
	}

	return results
}

func (eng *Engine) fetchOne(ctx context.Context, sub *domain.Subscription) (obs domain.PriceObservation) {
	obs = domain.PriceObservation{URL: sub.URL, Site: sub.Site}
	site := string(sub.Site)

	defer func() {
		if r := recover(); r != nil {
			eng.log.Error("extraction panicked", "subscription", sub.ID, "url", sub.URL, "panic", r)
			metrics.ExtractionFailuresTotal.WithLabelValues(site, "panic").Inc()
			obs.Success = false
			obs.FailureReason = fmt.Sprintf("panic: %v", r)
			obs.ObservedAt = eng.now()
		}
	}()

	if ctx.Err() != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues(site, "deadline").Inc()
		obs.ObservedAt = eng.now()
		obs.FailureReason = reasonCycleDeadline
		return obs
	}

	itemCtx, cancel := context.WithTimeout(ctx, eng.itemTimeout)
	defer cancel()

	start := time.Now()
	price, err := eng.extractor.Extract(itemCtx, sub.URL, sub.Site)
	metrics.ExtractionDuration.WithLabelValues(site).Observe(time.Since(start).Seconds())
	obs.ObservedAt = eng.now()

	if err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues(site, extract.KindLabel(err)).Inc()
		obs.FailureReason = err.Error()
		if ctx.Err() != nil {
			obs.FailureReason = reasonCycleDeadline + ": " + err.Error()
		}
		eng.log.Warn("extraction failed",
			"subscription", sub.ID,
			"url", sub.URL,
			"site", site,
			"error", err,
		)
		return obs
	}

	obs.Price = price
	obs.Success = true
	return obs
}

// reconcile classifies and persists each observation in poll order and
// collects what has to be sent.
func (eng *Engine) reconcile(
	ctx context.Context,
	subs []domain.Subscription,
	observations []domain.PriceObservation,
	summary *domain.CycleSummary,
) ([]ownerBatch, []notify.StreakAlert) {
	var (
		batches []ownerBatch
		alerts  []notify.StreakAlert
		index   = make(map[string]int)
	)

	for i := range subs {
		sub := &subs[i]
		obs := observations[i]

		ev := Classify(sub.LastPrice, sub.TargetPrice, obs, eng.now())
		ev.SubscriptionID = sub.ID

		summary.Checked++
		metrics.SubscriptionsChecked.Inc()
		metrics.PriceChangesTotal.WithLabelValues(string(ev.Classification)).Inc()

		var price *domain.Price
		if obs.Success {
			price = &obs.Price
		}
		if err := eng.store.UpdatePrice(ctx, sub.ID, price, obs.ObservedAt); err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("update_price").Inc()
			eng.log.Error("updating price failed", "subscription", sub.ID, "error", err)
			summary.Failed++
			continue
		}

		if shouldArchive(&ev) {
			if err := eng.store.AppendHistory(ctx, &ev); err != nil {
				metrics.StoreErrorsTotal.WithLabelValues("append_history").Inc()
				eng.log.Error("archiving change event failed", "subscription", sub.ID, "error", err)
			}
		}

		if obs.Success {
			eng.resetStreak(ctx, sub.ID)
		} else {
			summary.Failed++
			if a, ok := eng.recordFailure(ctx, sub, obs.FailureReason); ok {
				alerts = append(alerts, a)
			}
		}

		if !ev.Baseline && ev.Changed() {
			summary.Changed++
		}

		if !eng.policy.ShouldNotify(&ev) {
			continue
		}

		n, ok := index[sub.Owner]
		if !ok {
			n = len(batches)
			index[sub.Owner] = n
			batches = append(batches, ownerBatch{owner: sub.Owner})
		}
		batches[n].items = append(batches[n].items, notify.Item{Subscription: *sub, Event: ev})
	}

	return batches, alerts
}

func (eng *Engine) recordFailure(
	ctx context.Context,
	sub *domain.Subscription,
	reason string,
) (notify.StreakAlert, bool) {
	n, err := eng.streaks.RecordFailure(ctx, sub.ID)
	if err != nil {
		eng.log.Warn("recording failure streak failed", "subscription", sub.ID, "error", err)
		return notify.StreakAlert{}, false
	}
	if !eng.policy.ShouldAlertStreak(n) {
		return notify.StreakAlert{}, false
	}
	return notify.StreakAlert{Subscription: *sub, Failures: n, Reason: reason}, true
}

func (eng *Engine) resetStreak(ctx context.Context, id string) {
	if err := eng.streaks.Reset(ctx, id); err != nil {
		eng.log.Warn("resetting failure streak failed", "subscription", id, "error", err)
	}
}
