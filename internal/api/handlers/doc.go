package handlers

// StatusResponse is the body of the health probes. Checks is only set by
// the readiness probe.
type StatusResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}
