package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// JobsProvider is the slice of the store the jobs endpoints read from.
type JobsProvider interface {
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
}

// JobsHandler serves poll cycle bookkeeping.
type JobsHandler struct {
	store JobsProvider
	known []string
}

// NewJobsHandler creates a JobsHandler. When jobNames is non-empty, history
// requests for any other name are answered with 404.
func NewJobsHandler(s JobsProvider, jobNames ...string) *JobsHandler {
	return &JobsHandler{store: s, known: jobNames}
}

// JobRunView is a job run with its wall time precomputed.
type JobRunView struct {
	domain.JobRun
	DurationSeconds *float64 `json:"duration_seconds,omitempty" doc:"Wall time of a completed run"`
}

func viewsOf(runs []domain.JobRun, status string) []JobRunView {
	out := make([]JobRunView, 0, len(runs))
	for i := range runs {
		r := runs[i]
		if status != "" && r.Status != status {
			continue
		}
		v := JobRunView{JobRun: r}
		if r.CompletedAt != nil {
			d := r.CompletedAt.Sub(r.StartedAt).Seconds()
			v.DurationSeconds = &d
		}
		out = append(out, v)
	}
	return out
}

// JobRunsOutput is the response of both jobs endpoints.
type JobRunsOutput struct {
	Body []JobRunView
}

// JobHistoryInput selects the runs of one job.
type JobHistoryInput struct {
	JobName string `path:"job_name" doc:"Scheduled job name (e.g. poll_cycle)"`
	Limit   int    `query:"limit" default:"20" minimum:"1" maximum:"200" doc:"Runs to scan, newest first"`
	Status  string `query:"status" enum:"running,succeeded,failed,skipped" doc:"Keep only runs with this status"`
}

// ListJobs returns the newest run of every job.
func (h *JobsHandler) ListJobs(ctx context.Context, _ *struct{}) (*JobRunsOutput, error) {
	runs, err := h.store.ListLatestJobRuns(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing jobs failed: " + err.Error())
	}
	return &JobRunsOutput{Body: viewsOf(runs, "")}, nil
}

// GetJobHistory returns up to Limit runs of one job, newest first. The status
// filter applies to the scanned window, so fewer than Limit rows may return.
func (h *JobsHandler) GetJobHistory(ctx context.Context, in *JobHistoryInput) (*JobRunsOutput, error) {
	if len(h.known) > 0 && !slices.Contains(h.known, in.JobName) {
		return nil, huma.Error404NotFound("unknown job " + in.JobName)
	}

	runs, err := h.store.ListJobRuns(ctx, in.JobName, in.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("fetching job history failed: " + err.Error())
	}
	return &JobRunsOutput{Body: viewsOf(runs, in.Status)}, nil
}

// RegisterJobRoutes registers scheduler job endpoints with the Huma API.
func RegisterJobRoutes(api huma.API, h *JobsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List latest scheduler job runs",
		Description: "Returns the most recent run record for each scheduled job.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "get-job-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{job_name}",
		Summary:     "Get scheduler job history",
		Description: "Returns recent runs of one job, newest first, with optional status filter.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetJobHistory)
}
