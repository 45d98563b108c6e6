package realtime

// State is the connection state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateReconnecting
	StateError
)

var stateNames = [...]string{
	StateClosed:       "closed",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateDisconnected: "disconnected",
	StateReconnecting: "reconnecting",
	StateError:        "error",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether the manager is working toward or holding a
// connection. Connect is a no-op in these states.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}

// States returns every state name, in declaration order.
func States() []string {
	out := make([]string, len(stateNames))
	copy(out, stateNames[:])
	return out
}
