package mirror

type ConnectionState int32

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateResuming
	StateReady
	StateReconnecting
)

func (state ConnectionState) String() string {
	switch state {
	case StateClosed:
		return "Closed"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingHello:
		return "AwaitingHello"
	case StateIdentifying:
		return "Identifying"
	case StateResuming:
		return "Resuming"
	case StateReady:
		return "Ready"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// Open reports if a transport exists in this state.
func (state ConnectionState) Open() bool {
	switch state {
	case StateAwaitingHello, StateIdentifying, StateResuming, StateReady:
		return true
	default:
		return false
	}
}

type StatusKind int

const (
	StatusReady StatusKind = iota
	StatusResumed
	StatusReconnecting
	StatusClosed
)

func (kind StatusKind) String() string {
	switch kind {
	case StatusReady:
		return "Ready"
	case StatusResumed:
		return "Resumed"
	case StatusReconnecting:
		return "Reconnecting"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// StatusUpdate is sent to consumers when the connection changes in a way
// they may act on. Code and Reason are only set for StatusClosed.
type StatusUpdate struct {
	Reason string     `json:"reason,omitempty"`
	Kind   StatusKind `json:"kind"`
	Code   int        `json:"code,omitempty"`
}
