package engine

// State is the phase of the poll cycle state machine.
type State int32

// Cycle states, in the order a cycle walks through them.
const (
	StateIdle State = iota
	StateLoading
	StateFetching
	StateReconciling
	StateNotifying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateFetching:
		return "fetching"
	case StateReconciling:
		return "reconciling"
	case StateNotifying:
		return "notifying"
	default:
		return "unknown"
	}
}
