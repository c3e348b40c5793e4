package cable

import (
	"errors"
	"fmt"

	"github.com/cable-protocol/cable-go/pkg/wire"
)

// Sentinel errors.
var (
	// ErrConnectionClosed reports use of a connection that was closed
	// explicitly, without a failure cause.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrInvalidChannelName reports a channel name missing the required
	// "Channel" suffix.
	ErrInvalidChannelName = errors.New(`channel name must end in "Channel"`)

	// ErrUnsubscribed reports that a subscription's consumer was
	// cancelled before the server's verdict arrived.
	ErrUnsubscribed = errors.New("subscription cancelled")
)

// Code classifies the failure that terminated a connection.
type Code uint8

const (
	// CodeUnauthorized means the server refused the connection as
	// unauthorized.
	CodeUnauthorized Code = iota + 1

	// CodeInvalidRequest means the server rejected the connection
	// request as invalid.
	CodeInvalidRequest

	// CodeServerRestart means the server disconnected to restart.
	CodeServerRestart

	// CodeServerClosedConnection means the server ended the connection
	// without giving a reason.
	CodeServerClosedConnection

	// CodePingTimeout means no heartbeat arrived within the configured
	// window.
	CodePingTimeout

	// CodeProtocolError means the peer violated the wire protocol.
	// Reason carries the detail.
	CodeProtocolError

	// CodeNetworkError means the transport failed. Cause carries the
	// underlying error.
	CodeNetworkError

	// CodeSubscriptionRejected means the server rejected a channel
	// subscription.
	CodeSubscriptionRejected
)

// String returns a human-readable code name.
func (c Code) String() string {
	switch c {
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeInvalidRequest:
		return "INVALID_REQUEST"
	case CodeServerRestart:
		return "SERVER_RESTART"
	case CodeServerClosedConnection:
		return "SERVER_CLOSED_CONNECTION"
	case CodePingTimeout:
		return "PING_TIMEOUT"
	case CodeProtocolError:
		return "PROTOCOL_ERROR"
	case CodeNetworkError:
		return "NETWORK_ERROR"
	case CodeSubscriptionRejected:
		return "SUBSCRIPTION_REJECTED"
	default:
		return "UNKNOWN"
	}
}

// CloseError is a classified connection failure. Exactly one CloseError
// is ever attached as the terminal cause of a given connection, and the
// same value is what every waiter and consumer stream observes.
type CloseError struct {
	// Code classifies the failure.
	Code Code

	// Reason is human-readable detail: the server's disconnect reason,
	// the protocol violation, or the timeout description.
	Reason string

	// Cause is the underlying error for CodeNetworkError.
	Cause error
}

// Error returns the failure description.
func (e *CloseError) Error() string {
	switch {
	case e.Cause != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	default:
		return e.Code.String()
	}
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *CloseError) Unwrap() error {
	return e.Cause
}

// protocolError builds a CloseError for a wire protocol violation.
func protocolError(detail string) *CloseError {
	return &CloseError{Code: CodeProtocolError, Reason: detail}
}

// networkError builds a CloseError wrapping a transport failure.
func networkError(cause error) *CloseError {
	return &CloseError{Code: CodeNetworkError, Cause: cause}
}

// classifyDisconnect maps a disconnect frame to its CloseError. An
// absent reason means the server ended the session deliberately but
// anonymously; an unrecognized reason is a protocol violation.
func classifyDisconnect(msg *wire.Message) *CloseError {
	reason, ok := msg.DisconnectReason()
	if !ok {
		return &CloseError{Code: CodeServerClosedConnection, Reason: "server closed the connection"}
	}

	switch reason {
	case wire.ReasonUnauthorized:
		return &CloseError{Code: CodeUnauthorized, Reason: reason}
	case wire.ReasonInvalidRequest:
		return &CloseError{Code: CodeInvalidRequest, Reason: reason}
	case wire.ReasonServerRestart:
		return &CloseError{Code: CodeServerRestart, Reason: reason}
	default:
		return protocolError(fmt.Sprintf("unrecognized disconnect reason %q", reason))
	}
}
