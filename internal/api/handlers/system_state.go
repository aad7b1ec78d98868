package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/price-monitor/internal/engine"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// CycleStateProvider reports the engine's current phase and its most
// recent completed cycle. *engine.Engine satisfies it.
type CycleStateProvider interface {
	State() engine.State
	LastCycle() (domain.CycleSummary, bool)
}

// NextPoller reports when the scheduler fires next. *engine.Scheduler
// satisfies it.
type NextPoller interface {
	NextPoll() (time.Time, bool)
}

// SystemStateHandler handles GET /api/v1/system/state.
type SystemStateHandler struct {
	engine CycleStateProvider
	sched  NextPoller
}

// NewSystemStateHandler creates a SystemStateHandler. sched may be nil when
// no scheduler runs, e.g. in one-shot check mode.
func NewSystemStateHandler(e CycleStateProvider, sched NextPoller) *SystemStateHandler {
	return &SystemStateHandler{engine: e, sched: sched}
}

// SystemStateOutput is the response for GET /api/v1/system/state.
type SystemStateOutput struct {
	Body struct {
		State     string               `json:"state"                doc:"Current cycle phase" example:"idle"`
		LastCycle  *domain.CycleSummary `json:"last_cycle,omitempty"   doc:"Summary of the most recent completed cycle"`
		NextPollAt *time.Time           `json:"next_poll_at,omitempty" doc:"When the scheduler starts the next cycle"`
	}
}

// GetSystemState returns the current cycle phase, the last cycle summary
// and the next scheduled poll.
func (h *SystemStateHandler) GetSystemState(
	_ context.Context,
	_ *struct{},
) (*SystemStateOutput, error) {
	resp := &SystemStateOutput{}
	resp.Body.State = h.engine.State().String()
	if last, ok := h.engine.LastCycle(); ok {
		resp.Body.LastCycle = &last
	}
	if h.sched != nil {
		if next, ok := h.sched.NextPoll(); ok {
			resp.Body.NextPollAt = &next
		}
	}
	return resp, nil
}

// RegisterSystemStateRoutes registers the system state route on the Huma API.
func RegisterSystemStateRoutes(api huma.API, h *SystemStateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-system-state",
		Method:      http.MethodGet,
		Path:        "/api/v1/system/state",
		Summary:     "Get system state",
		Description: "Returns the poll cycle phase, the summary of the last completed cycle " +
			"and the time of the next scheduled poll.",
		Tags:        []string{"system"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.GetSystemState)
}
