// Package wire defines the JSON wire format types for the cable protocol.
//
// All frames are JSON objects transmitted as text messages over a single
// WebSocket. Inbound frames are distinguished by their "type" field;
// frames without a type carry channel data. Outbound frames carry a
// "command" field instead.
//
// # Frame Types
//
// Inbound control frames:
//   - welcome: handshake accepted, connection is usable
//   - disconnect: server is closing the connection, with an optional reason
//   - ping: liveness signal, sent periodically by the server
//
// Inbound channel frames carry an "identifier" routing key:
//   - confirm_subscription / reject_subscription: subscribe outcomes
//   - no type: a data frame with a "message" payload
//
// Outbound commands are subscribe, unsubscribe, and message.
//
// # Double-Encoded Data
//
// The "data" field of an outbound message command is itself a complete
// JSON document serialized to a string, holding the action name under
// "action" plus caller-supplied fields. This nesting is required by the
// protocol and reproduced exactly.
package wire
