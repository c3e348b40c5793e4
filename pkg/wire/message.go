package wire

import (
	"encoding/json"
)

// Inbound frame types. A frame with no type at all is a data frame.
const (
	TypeWelcome             = "welcome"
	TypeDisconnect          = "disconnect"
	TypePing                = "ping"
	TypeConfirmSubscription = "confirm_subscription"
	TypeRejectSubscription  = "reject_subscription"
)

// Outbound command names.
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandMessage     = "message"
)

// Disconnect reasons with defined classifications. Any other reason is a
// protocol violation.
const (
	ReasonUnauthorized   = "unauthorized"
	ReasonInvalidRequest = "invalid_request"
	ReasonServerRestart  = "server_restart"
)

// WebSocket subprotocols offered during the handshake. Servers that
// speak the protocol select the v1 JSON variant; the fallback name lets
// a server signal rejection without killing the socket.
const (
	SubprotocolV1JSON      = "actioncable-v1-json"
	SubprotocolUnsupported = "actioncable-unsupported"
)

// Message represents a single inbound frame.
//
// JSON encoding:
//
//	{"type":"welcome"}
//	{"type":"disconnect","reason":"server_restart","reconnect":true}
//	{"type":"ping","message":1718123456}
//	{"type":"confirm_subscription","identifier":<encoded-id>}
//	{"type":"reject_subscription","identifier":<encoded-id>}
//	{"identifier":<encoded-id>,"message":<any>}
//
// Reconnect is advisory and parsed for completeness only; this client
// never reconnects on its own.
type Message struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     *string         `json:"reason,omitempty"`
	Reconnect  *bool           `json:"reconnect,omitempty"`
}

// DisconnectReason returns the reason of a disconnect frame and whether
// one was present. An absent reason classifies differently from an
// unrecognized one, so the distinction is preserved.
func (m *Message) DisconnectReason() (string, bool) {
	if m.Reason == nil {
		return "", false
	}
	return *m.Reason, true
}

// Command represents a single outbound frame.
//
// JSON encoding:
//
//	{"command":"subscribe","identifier":<encoded-id>}
//	{"command":"unsubscribe","identifier":<encoded-id>}
//	{"command":"message","identifier":<encoded-id>,"data":<json-string>}
type Command struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}
