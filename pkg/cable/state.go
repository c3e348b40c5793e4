package cable

// State represents the lifecycle state of a Connection.
type State uint8

const (
	// StateConnecting is the initial state, before the server's welcome
	// frame arrives.
	StateConnecting State = iota

	// StateOpen means the handshake completed and channels can be used.
	StateOpen

	// StateClosed is terminal. A closed connection never reopens.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Status represents the subscription lifecycle state of a Channel.
type Status uint8

const (
	// StatusUnsubscribed means no consumer is attached and no subscribe
	// command is outstanding.
	StatusUnsubscribed Status = iota

	// StatusSubscribing means a subscribe command was sent and the
	// server's verdict is pending.
	StatusSubscribing

	// StatusSubscribed means the server confirmed the subscription.
	StatusSubscribed

	// StatusRejected means the server rejected the subscription. A new
	// consumer attaching restarts the cycle.
	StatusRejected

	// StatusDisconnected means the owning connection closed. Terminal
	// for this channel instance.
	StatusDisconnected
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusUnsubscribed:
		return "UNSUBSCRIBED"
	case StatusSubscribing:
		return "SUBSCRIBING"
	case StatusSubscribed:
		return "SUBSCRIBED"
	case StatusRejected:
		return "REJECTED"
	case StatusDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}
