package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/price-monitor/internal/metrics"
	"github.com/donaldgifford/price-monitor/internal/store"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// PollJobName is the job name recorded for poll cycles.
const PollJobName = "poll_cycle"

const staleJobThreshold = 2 * time.Hour

// Job run statuses.
const (
	jobSucceeded = "succeeded"
	jobFailed    = "failed"
	jobSkipped   = "skipped"
)

// Scheduler drives poll cycles on a fixed interval and records each one
// as a job run.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	store  store.Store
	log    *slog.Logger

	pollEntryID cron.EntryID
}

// NewScheduler creates a Scheduler that runs a poll cycle every interval.
// A cycle that outlasts the interval delays the next one.
func NewScheduler(
	eng *Engine,
	s store.Store,
	interval time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	cl := cronLogger{log: log}
	c := cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.DelayIfStillRunning(cl),
	))

	sched := &Scheduler{
		cron:   c,
		engine: eng,
		store:  s,
		log:    log,
	}

	id, err := c.AddFunc("@every "+interval.String(), sched.runPoll)
	if err != nil {
		return nil, fmt.Errorf("registering poll job: %w", err)
	}
	sched.pollEntryID = id

	return sched, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
	s.SyncNextRunTimestamps()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// CheckNow runs one poll cycle immediately and records it as a job run.
func (s *Scheduler) CheckNow(ctx context.Context) (domain.CycleSummary, error) {
	var summary domain.CycleSummary
	err := s.runJob(ctx, PollJobName, func(ctx context.Context) (int, error) {
		var err error
		summary, err = s.engine.RunCycle(ctx)
		return summary.Checked, err
	})
	return summary, err
}

// RecoverStaleJobRuns marks job runs left running by a crashed process.
func (s *Scheduler) RecoverStaleJobRuns(ctx context.Context) {
	n, err := s.store.RecoverStaleJobRuns(ctx, staleJobThreshold)
	if err != nil {
		s.log.Error("recovering stale job runs failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("marked stale job runs as crashed", "count", n)
	}
}

// NextPoll returns when the next scheduled cycle fires. It reports false
// before Start.
func (s *Scheduler) NextPoll() (time.Time, bool) {
	next := s.cron.Entry(s.pollEntryID).Next
	return next, !next.IsZero()
}

// SyncNextRunTimestamps publishes the next poll time as a metric.
func (s *Scheduler) SyncNextRunTimestamps() {
	if next, ok := s.NextPoll(); ok {
		metrics.SchedulerNextPollTimestamp.Set(float64(next.Unix()))
	}
}

func (s *Scheduler) runPoll() {
	defer s.SyncNextRunTimestamps()

	s.log.Info("scheduled poll starting")
	if _, err := s.CheckNow(context.Background()); err != nil {
		s.log.Error("scheduled poll failed", "error", err)
	}
}

// runJob records a job run around fn. Failing to record the run does not
// prevent fn from running.
func (s *Scheduler) runJob(
	ctx context.Context,
	name string,
	fn func(context.Context) (int, error),
) error {
	runID, err := s.store.InsertJobRun(ctx, name)
	if err != nil {
		s.log.Warn("recording job start failed", "job", name, "error", err)
	}

	rows, jobErr := fn(ctx)

	if runID == "" {
		return jobErr
	}

	status, errText := jobSucceeded, ""
	switch {
	case errors.Is(jobErr, ErrCycleInProgress):
		status, errText = jobSkipped, jobErr.Error()
	case jobErr != nil:
		status, errText = jobFailed, jobErr.Error()
	}

	if err := s.store.CompleteJobRun(context.WithoutCancel(ctx), runID, status, errText, rows); err != nil {
		s.log.Warn("recording job completion failed", "job", name, "run", runID, "error", err)
	}

	return jobErr
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
