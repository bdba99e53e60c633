package task

// State is the lifecycle state of a task as reported by the backend.
type State string

const (
	StatePending  State = "PENDING"
	StateReceived State = "RECEIVED"
	StateStarted  State = "STARTED"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRetry    State = "RETRY"
	StateRevoked  State = "REVOKED"
	StateRejected State = "REJECTED"
)

// States lists every known state in lifecycle order.
var States = []State{
	StatePending,
	StateReceived,
	StateStarted,
	StateSuccess,
	StateFailure,
	StateRetry,
	StateRevoked,
	StateRejected,
}

// Known reports whether s is one of the enumerated states. Unknown states are
// still carried through untouched; the backend is authoritative.
func (s State) Known() bool {
	for _, k := range States {
		if s == k {
			return true
		}
	}
	return false
}

// Active reports whether the task is currently executing.
func (s State) Active() bool {
	return s == StateStarted
}

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked, StateRejected:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}
