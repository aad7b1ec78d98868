package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/internal/metrics"
	notifyMocks "github.com/donaldgifford/price-monitor/internal/notify/mocks"
	"github.com/donaldgifford/price-monitor/internal/store"
	storeMocks "github.com/donaldgifford/price-monitor/internal/store/mocks"
	extractMocks "github.com/donaldgifford/price-monitor/pkg/extract/mocks"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// newSchedulerTestEngine returns a test engine and a mock store for use in scheduler tests.
func newSchedulerTestEngine(t *testing.T) (*Engine, *storeMocks.MockStore) {
	t.Helper()
	ms := storeMocks.NewMockStore(t)
	mx := extractMocks.NewMockExtractor(t)
	mn := notifyMocks.NewMockNotifier(t)
	return newTestEngine(ms, mx, mn), ms
}

func TestNewScheduler_RegistersCronEntry(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 5*time.Minute, quietLogger())
	require.NoError(t, err)

	assert.Len(t, sched.Entries(), 1)
	assert.NotZero(t, sched.pollEntryID)
}

func TestNewScheduler_RejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	_, err := NewScheduler(eng, ms, 0, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	sched.Start()
	ctx := sched.Stop()
	<-ctx.Done()
}

func TestScheduler_SyncNextRunTimestamps(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 15*time.Minute, quietLogger())
	require.NoError(t, err)

	// Start so that cron populates Next times.
	sched.Start()
	defer sched.Stop()

	sched.SyncNextRunTimestamps()

	next := ptestutil.ToFloat64(metrics.SchedulerNextPollTimestamp)
	assert.Greater(t, next, float64(0), "next poll timestamp should be set")
}

func TestScheduler_NextPoll(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 15*time.Minute, quietLogger())
	require.NoError(t, err)

	_, ok := sched.NextPoll()
	assert.False(t, ok, "no next poll before start")

	sched.Start()
	defer sched.Stop()

	next, ok := sched.NextPoll()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), next, time.Minute)
}

func TestScheduler_RunJob_Success(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().InsertJobRun(mock.Anything, "test-job").Return("run-id-1", nil).Once()
	ms.EXPECT().
		CompleteJobRun(mock.Anything, "run-id-1", "succeeded", "", 7).
		Return(nil).Once()

	called := false
	err = sched.runJob(context.Background(), "test-job", func(_ context.Context) (int, error) {
		called = true
		return 7, nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestScheduler_RunJob_Failure(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	jobErr := errors.New("something went wrong")

	ms.EXPECT().InsertJobRun(mock.Anything, "fail-job").Return("run-id-2", nil).Once()
	ms.EXPECT().
		CompleteJobRun(mock.Anything, "run-id-2", "failed", jobErr.Error(), 0).
		Return(nil).Once()

	err = sched.runJob(context.Background(), "fail-job", func(_ context.Context) (int, error) {
		return 0, jobErr
	})

	require.ErrorIs(t, err, jobErr)
}

func TestScheduler_RunJob_InProgressIsSkipped(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().InsertJobRun(mock.Anything, PollJobName).Return("run-id-3", nil).Once()
	ms.EXPECT().
		CompleteJobRun(mock.Anything, "run-id-3", "skipped", ErrCycleInProgress.Error(), 0).
		Return(nil).Once()

	err = sched.runJob(context.Background(), PollJobName, func(_ context.Context) (int, error) {
		return 0, ErrCycleInProgress
	})

	require.ErrorIs(t, err, ErrCycleInProgress)
}

func TestScheduler_RunJob_InsertFailureStillRuns(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().InsertJobRun(mock.Anything, "job").Return("", errors.New("db down")).Once()

	called := false
	err = sched.runJob(context.Background(), "job", func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestScheduler_RecoverStaleJobs(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, ms, 1*time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().
		RecoverStaleJobRuns(mock.Anything, 2*time.Hour).
		Return(3, nil).Once()

	sched.RecoverStaleJobRuns(context.Background())
}

func TestScheduler_CheckNow_RecordsJobRun(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	sub := seed(t, s, "A", "https://shop.example/1", nil, domain.PriceOf(1000))

	mx := extractMocks.NewMockExtractor(t)
	mx.EXPECT().Extract(mock.Anything, sub.URL, mock.Anything).Return(domain.Price(1000), nil).Once()

	eng := newTestEngine(s, mx, notifyMocks.NewMockNotifier(t))
	sched, err := NewScheduler(eng, s, time.Hour, quietLogger())
	require.NoError(t, err)

	summary, err := sched.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)

	runs, err := s.ListJobRuns(context.Background(), PollJobName, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].Status)
	require.NotNil(t, runs[0].RowsAffected)
	assert.Equal(t, 1, *runs[0].RowsAffected)
}

func TestScheduler_CheckNow_CycleFailureRecorded(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)
	sched, err := NewScheduler(eng, ms, time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().InsertJobRun(mock.Anything, PollJobName).Return("run-1", nil).Once()
	ms.EXPECT().ListActive(mock.Anything).Return(nil, errors.New("db down")).Once()
	ms.EXPECT().
		CompleteJobRun(mock.Anything, "run-1", "failed", mock.AnythingOfType("string"), 0).
		Return(nil).Once()

	_, err = sched.CheckNow(context.Background())
	require.Error(t, err)
}

func TestScheduler_RunPollSurvivesFailure(t *testing.T) {
	t.Parallel()

	eng, ms := newSchedulerTestEngine(t)
	sched, err := NewScheduler(eng, ms, time.Hour, quietLogger())
	require.NoError(t, err)

	ms.EXPECT().InsertJobRun(mock.Anything, PollJobName).Return("", errors.New("db down")).Once()
	ms.EXPECT().ListActive(mock.Anything).Return(nil, errors.New("db down")).Once()

	assert.NotPanics(t, sched.runPoll)
}
