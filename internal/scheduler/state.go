package scheduler

// State is the execution state of a single component. Transitions are
// monotonic: Pending -> Ready -> Running -> Done | Failed, and
// Pending -> Blocked when a transitive dependency fails. Terminal states are
// never left.
type State int

const (
	// StatePending means one or more dependencies are not yet done.
	StatePending State = iota
	// StateReady means all dependencies are done and the component is queued.
	StateReady
	// StateRunning means a synthesis call is in flight.
	StateRunning
	// StateDone means synthesis succeeded and the source is stored.
	StateDone
	// StateFailed means synthesis exhausted its retry budget.
	StateFailed
	// StateBlocked means a transitive dependency failed; never launched.
	StateBlocked
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateBlocked
}
