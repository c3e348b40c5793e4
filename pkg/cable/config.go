package cable

import (
	"net/http"
	"time"

	"github.com/cable-protocol/cable-go/pkg/log"
	"github.com/cable-protocol/cable-go/pkg/transport"
)

// Configuration defaults.
const (
	// DefaultConnectTimeout bounds Connect's dial plus handshake.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultPingTimeout is the heartbeat deadline. Servers ping every
	// 3 seconds, so 6 seconds tolerates one missed ping.
	DefaultPingTimeout = 6 * time.Second

	// DefaultSubscriptionBuffer is the capacity of each subscription's
	// message channel.
	DefaultSubscriptionBuffer = 64
)

// Config holds connection configuration.
type Config struct {
	// ConnectTimeout bounds the transport dial plus protocol handshake
	// in Connect. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// PingTimeout is the longest silence between server heartbeats
	// before the connection closes with CodePingTimeout. Zero means
	// DefaultPingTimeout.
	PingTimeout time.Duration

	// SubscriptionBuffer is the capacity of each subscription's message
	// channel. Messages arriving while a buffer is full are dropped.
	// Zero means DefaultSubscriptionBuffer.
	SubscriptionBuffer int

	// Header carries extra HTTP headers for the WebSocket handshake,
	// typically authentication.
	Header http.Header

	// Transport configures the underlying WebSocket connection.
	Transport transport.Config

	// Logger receives protocol events for every frame, state change and
	// failure. Nil disables protocol logging.
	Logger log.Logger

	// OnError observes the classified cause when the connection closes
	// on a failure. Never invoked for an explicit Close. Called from
	// the connection's dispatch goroutine; it must not block.
	OnError func(*CloseError)
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     DefaultConnectTimeout,
		PingTimeout:        DefaultPingTimeout,
		SubscriptionBuffer: DefaultSubscriptionBuffer,
		Transport:          transport.DefaultConfig(),
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.SubscriptionBuffer == 0 {
		c.SubscriptionBuffer = DefaultSubscriptionBuffer
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	return c
}
