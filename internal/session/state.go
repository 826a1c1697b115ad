package session

// State is the local participant's high-level session status.
type State int

const (
	StateDisconnected State = iota
	StateDiscovering
	StateConnecting
	StateConnected
	StateSyncing
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSyncing:
		return "syncing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether a session loop is running in this state.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected || s == StateSyncing
}
