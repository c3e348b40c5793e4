package transport

// Message is a single frame received from the peer.
type Message struct {
	// Binary reports whether the frame was a binary frame. The cable
	// protocol defines only text frames; the consumer decides how to
	// treat binary ones.
	Binary bool

	// Data is the frame payload.
	Data []byte
}

// Handler receives events from a connection's read loop. All methods
// are invoked from the single read goroutine, in arrival order.
// Exactly one of OnError or OnDone is the loop's final call.
type Handler interface {
	// OnMessage is called for every received frame.
	OnMessage(msg Message)

	// OnError is called when the read loop fails. Terminal.
	OnError(err error)

	// OnDone is called when the stream ends without a fault: the peer
	// closed cleanly, or the connection was closed locally. Terminal.
	OnDone()
}

// Conn represents an established connection to a server.
// Implemented by WebSocketConn.
type Conn interface {
	// Listen starts delivering read-loop events to handler. Only the
	// first call has any effect.
	Listen(handler Handler)

	// Send transmits a single text frame.
	Send(data []byte) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the remote network address.
	RemoteAddr() string
}

// Compile-time interface satisfaction check.
var _ Conn = (*WebSocketConn)(nil)
