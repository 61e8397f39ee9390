package session

// State is the connection state of a session.
type State int

const (
	// StateDisconnected is the initial state and the state after an explicit
	// disconnect or after reconnect attempts are exhausted.
	StateDisconnected State = iota

	// StateConnecting means a transport is being established.
	StateConnecting

	// StateConnected means the transport is up and desired rooms were replayed.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateEvent is passed to OnStateChange callbacks.
type StateEvent struct {
	OldState State
	NewState State
	Error    error // Optional error that caused the state change
}
