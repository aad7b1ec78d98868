package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// JobRun is a scheduler job run as served by the API.
type JobRun struct {
	domain.JobRun
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// JobHistoryQuery narrows GetJobHistory. Zero values use the server defaults.
type JobHistoryQuery struct {
	Limit  int
	Status string
}

// ListJobs returns the most recent run for each distinct scheduled job.
func (c *Client) ListJobs(ctx context.Context) ([]JobRun, error) {
	var runs []JobRun
	if err := c.get(ctx, "/api/v1/jobs", &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetJobHistory returns recent runs of one job, newest first.
func (c *Client) GetJobHistory(ctx context.Context, jobName string, q JobHistoryQuery) ([]JobRun, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}

	path := "/api/v1/jobs/" + url.PathEscape(jobName)
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var runs []JobRun
	if err := c.get(ctx, path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// CheckNow runs a poll cycle on the server and returns its summary.
func (c *Client) CheckNow(ctx context.Context) (*domain.CycleSummary, error) {
	var summary domain.CycleSummary
	if err := c.post(ctx, "/api/v1/check", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SystemState is the poll cycle phase reported by the server.
type SystemState struct {
	State     string               `json:"state"`
	LastCycle  *domain.CycleSummary `json:"last_cycle,omitempty"`
	NextPollAt *time.Time           `json:"next_poll_at,omitempty"`
}

// GetSystemState returns the current poll cycle phase.
func (c *Client) GetSystemState(ctx context.Context) (*SystemState, error) {
	var st SystemState
	if err := c.get(ctx, "/api/v1/system/state", &st); err != nil {
		return nil, err
	}
	return &st, nil
}
