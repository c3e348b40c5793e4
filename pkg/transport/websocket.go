package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cable-protocol/cable-go/pkg/wire"
)

// Transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// Default transport limits.
const (
	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultMaxMessageSize is the largest accepted inbound frame (1 MiB).
	DefaultMaxMessageSize = 1 << 20
)

// closeGracePeriod bounds the best-effort close frame write on teardown.
const closeGracePeriod = 1 * time.Second

// Config configures the WebSocket transport.
type Config struct {
	// HandshakeTimeout bounds the opening handshake (default: 30s).
	HandshakeTimeout time.Duration

	// MaxMessageSize is the largest inbound frame accepted, in bytes
	// (default: 1 MiB). A larger frame fails the connection.
	MaxMessageSize int64

	// Subprotocols offered during the handshake (default:
	// actioncable-v1-json, actioncable-unsupported).
	Subprotocols []string

	// TLSClientConfig is used for wss endpoints (nil for defaults).
	TLSClientConfig *tls.Config
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxMessageSize:   DefaultMaxMessageSize,
		Subprotocols:     []string{wire.SubprotocolV1JSON, wire.SubprotocolUnsupported},
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if len(c.Subprotocols) == 0 {
		c.Subprotocols = def.Subprotocols
	}
	return c
}

// Dial establishes a WebSocket connection to url (ws or wss scheme).
// The context and cfg.HandshakeTimeout both bound the handshake. The
// returned connection reads no frames until Listen is called.
func Dial(ctx context.Context, url string, header http.Header, cfg Config) (*WebSocketConn, error) {
	cfg = cfg.withDefaults()

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Subprotocols:     cfg.Subprotocols,
		TLSClientConfig:  cfg.TLSClientConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(cfg.MaxMessageSize)

	return &WebSocketConn{
		conn:   conn,
		closed: make(chan struct{}),
	}, nil
}

// WebSocketConn is a Conn over a gorilla/websocket client connection.
type WebSocketConn struct {
	conn *websocket.Conn

	listenOnce sync.Once
	closeOnce  sync.Once
	closed     chan struct{}

	// Serializes data frames; control frames go through WriteControl,
	// which gorilla allows concurrently.
	writeMu sync.Mutex
}

// Listen starts the read loop, delivering events to handler from a
// single goroutine. Only the first call has any effect.
func (c *WebSocketConn) Listen(handler Handler) {
	c.listenOnce.Do(func() {
		go c.readLoop(handler)
	})
}

// Send writes data as a single text frame. Safe for concurrent use.
func (c *WebSocketConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the connection, sending a best-effort close frame first.
// Idempotent; a pending read unblocks and the read loop reports OnDone.
func (c *WebSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote network address.
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Subprotocol returns the subprotocol selected by the server during the
// handshake, or the empty string if none was agreed.
func (c *WebSocketConn) Subprotocol() string {
	return c.conn.Subprotocol()
}

func (c *WebSocketConn) readLoop(handler Handler) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			// A read failing because of a local Close is teardown,
			// not a transport fault.
			select {
			case <-c.closed:
				handler.OnDone()
			default:
				if isCleanClose(err) {
					handler.OnDone()
				} else {
					handler.OnError(err)
				}
			}
			return
		}

		handler.OnMessage(Message{
			Binary: msgType == websocket.BinaryMessage,
			Data:   data,
		})
	}
}

// isCleanClose reports whether a read error means the peer ended the
// stream normally rather than the transport failing.
func isCleanClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
