// Package transport provides the WebSocket transport for the cable
// protocol.
//
// The protocol runs over a single persistent WebSocket carrying JSON
// text frames. This package owns dialing (subprotocol negotiation,
// optional TLS), the read loop, write serialization, and idempotent
// teardown. Framing and masking are handled by
// github.com/gorilla/websocket.
//
// # Event Delivery
//
// A connection delivers events through the Handler interface from a
// single read goroutine: OnMessage per frame, then exactly one of
// OnError (transport fault) or OnDone (end of stream). A close frame
// with code 1000, 1001, or 1005, a clean EOF between frames, and a
// locally initiated Close all count as end of stream; everything else
// is a fault.
//
// # Limits
//
// Inbound frames larger than Config.MaxMessageSize (default 1 MiB)
// fail the connection rather than buffer without bound.
package transport
