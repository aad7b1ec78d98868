package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/price-monitor/internal/engine"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Checker defines the interface for triggering a poll cycle.
type Checker interface {
	CheckNow(ctx context.Context) (domain.CycleSummary, error)
}

// CheckHandler handles manual check requests.
type CheckHandler struct {
	checker Checker
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(c Checker) *CheckHandler {
	return &CheckHandler{checker: c}
}

// CheckOutput is the response body for the check endpoint.
type CheckOutput struct {
	Body domain.CycleSummary
}

// Check runs one poll cycle over every active subscription.
func (h *CheckHandler) Check(ctx context.Context, _ *struct{}) (*CheckOutput, error) {
	summary, err := h.checker.CheckNow(ctx)
	if errors.Is(err, engine.ErrCycleInProgress) {
		return nil, huma.Error409Conflict("a poll cycle is already running")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("check failed: " + err.Error())
	}

	return &CheckOutput{Body: summary}, nil
}

// RegisterTriggerRoutes registers trigger endpoints with the Huma API.
func RegisterTriggerRoutes(api huma.API, h *CheckHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "check-now",
		Method:      http.MethodPost,
		Path:        "/api/v1/check",
		Summary:     "Run a poll cycle now",
		Description: "Checks every active subscription, records changes, " +
			"sends notifications, and returns a cycle summary.",
		Tags:   []string{"scheduler"},
		Errors: []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Check)
}
