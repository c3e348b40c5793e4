// Package cable implements the client side of the ActionCable
// publish/subscribe protocol over one persistent WebSocket.
//
// Any number of logical channels multiplex over a single Connection.
// Each channel has its own subscribe/confirm/reject/unsubscribe
// lifecycle and message stream, while connection-level events
// (handshake, heartbeat loss, server disconnect, transport failure)
// fan out to every consumer and terminate the whole connection
// consistently. There is no reconnection: after any close the
// connection is permanently dead and the caller builds a new one.
//
// # Connecting
//
// Connect dials, performs the welcome handshake and applies the
// connect timeout:
//
//	conn, err := cable.Connect(ctx, "wss://example.org/cable", cable.DefaultConfig())
//	if err != nil {
//	    // err is a *cable.CloseError for classified failures
//	}
//	defer conn.Close()
//
// # Subscribing
//
// Channels are keyed by their canonical identifier (name plus
// parameters) and activated lazily by the first consumer:
//
//	ch, err := conn.Channel("ChatChannel", map[string]any{"room": "general"})
//	sub, err := ch.Subscribe(ctx) // sends subscribe, waits for the verdict
//
//	for msg := range sub.Messages() {
//	    // msg is the raw JSON payload broadcast on the channel
//	}
//	if err := sub.Err(); err != nil {
//	    // the stream ended on a failure
//	}
//
// Listen attaches without waiting for confirmation; Perform sends a
// fire-and-forget action:
//
//	sub, err := ch.Listen()
//	err = ch.Perform("speak", map[string]any{"body": "hello"})
//	sub.Cancel() // last consumer sends the unsubscribe
//
// # Failure model
//
// Every failure is a *CloseError from a closed taxonomy (see Code).
// A connection close delivers its cause exactly once to the handshake
// waiter, to every live subscription stream, and to the optional
// Config.OnError observer.
package cable
