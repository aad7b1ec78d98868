package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/internal/api/handlers"
	storeMocks "github.com/donaldgifford/price-monitor/internal/store/mocks"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

func jobRun(status string, took time.Duration) domain.JobRun {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := domain.JobRun{
		ID:        "run-" + status,
		JobName:   "poll_cycle",
		StartedAt: started,
		Status:    status,
	}
	if took > 0 {
		done := started.Add(took)
		r.CompletedAt = &done
	}
	return r
}

func decodeRuns(t *testing.T, body []byte) []handlers.JobRunView {
	t.Helper()
	var out []handlers.JobRunView
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		runs       []domain.JobRun
		err        error
		wantStatus int
		wantLen    int
	}{
		{
			name:       "latest runs with duration",
			runs:       []domain.JobRun{jobRun("succeeded", 90*time.Second)},
			wantStatus: http.StatusOK,
			wantLen:    1,
		},
		{
			name:       "no runs yet is an empty array",
			wantStatus: http.StatusOK,
		},
		{
			name:       "store failure",
			err:        errors.New("db error"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := storeMocks.NewMockStore(t)
			ms.EXPECT().ListLatestJobRuns(mock.Anything).Return(tt.runs, tt.err).Once()

			_, api := humatest.New(t)
			handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(ms, "poll_cycle"))

			resp := api.Get("/api/v1/jobs")
			require.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, resp.Body.String(), "listing jobs failed")
				return
			}

			runs := decodeRuns(t, resp.Body.Bytes())
			require.Len(t, runs, tt.wantLen)
			if tt.wantLen > 0 {
				require.NotNil(t, runs[0].DurationSeconds)
				assert.InDelta(t, 90.0, *runs[0].DurationSeconds, 0.001)
			}
		})
	}
}

func TestGetJobHistory_FiltersByStatus(t *testing.T) {
	t.Parallel()

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().ListJobRuns(mock.Anything, "poll_cycle", 50).Return([]domain.JobRun{
		jobRun("succeeded", time.Minute),
		jobRun("failed", 2*time.Minute),
		jobRun("running", 0),
	}, nil).Once()

	_, api := humatest.New(t)
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(ms, "poll_cycle"))

	resp := api.Get("/api/v1/jobs/poll_cycle?limit=50&status=failed")
	require.Equal(t, http.StatusOK, resp.Code)

	runs := decodeRuns(t, resp.Body.Bytes())
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
}

func TestGetJobHistory_DefaultLimitAndRunningHasNoDuration(t *testing.T) {
	t.Parallel()

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().ListJobRuns(mock.Anything, "poll_cycle", 20).
		Return([]domain.JobRun{jobRun("running", 0)}, nil).Once()

	_, api := humatest.New(t)
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(ms, "poll_cycle"))

	resp := api.Get("/api/v1/jobs/poll_cycle")
	require.Equal(t, http.StatusOK, resp.Code)

	runs := decodeRuns(t, resp.Body.Bytes())
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].DurationSeconds)
	assert.NotContains(t, resp.Body.String(), "duration_seconds")
}

func TestGetJobHistory_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown job", path: "/api/v1/jobs/ingestion", wantStatus: http.StatusNotFound},
		{name: "limit above maximum", path: "/api/v1/jobs/poll_cycle?limit=500", wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown status", path: "/api/v1/jobs/poll_cycle?status=done", wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := storeMocks.NewMockStore(t)
			_, api := humatest.New(t)
			handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(ms, "poll_cycle"))

			resp := api.Get(tt.path)
			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestGetJobHistory_StoreError(t *testing.T) {
	t.Parallel()

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().ListJobRuns(mock.Anything, "poll_cycle", 20).Return(nil, errors.New("db error")).Once()

	_, api := humatest.New(t)
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(ms))

	resp := api.Get("/api/v1/jobs/poll_cycle")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "fetching job history failed")
}
