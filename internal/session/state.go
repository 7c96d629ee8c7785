package session

// State is the lifecycle phase of a session.
type State int32

const (
	// StateDisconnected is the initial state before Connect.
	StateDisconnected State = iota

	// StateConnecting means the transport is being established.
	StateConnecting

	// StateHandshaking means the transport is up and the initialize
	// exchange is in flight.
	StateHandshaking

	// StateReady means the session accepts requests.
	StateReady

	// StateReconnecting means the connection dropped and automatic
	// recovery is in progress.
	StateReconnecting

	// StateClosed is terminal: Close was called, the handshake failed, or
	// the reconnect budget ran out. A closed session cannot be reused.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
