package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cable-protocol/cable-go/pkg/wire"
)

const testWait = 5 * time.Second

// collectHandler records read-loop events and signals them on channels.
type collectHandler struct {
	mu       sync.Mutex
	messages []Message

	msgCh  chan Message
	errCh  chan error
	doneCh chan struct{}
}

func newCollectHandler() *collectHandler {
	return &collectHandler{
		msgCh:  make(chan Message, 16),
		errCh:  make(chan error, 1),
		doneCh: make(chan struct{}),
	}
}

func (h *collectHandler) OnMessage(msg Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
	h.msgCh <- msg
}

func (h *collectHandler) OnError(err error) {
	h.errCh <- err
}

func (h *collectHandler) OnDone() {
	close(h.doneCh)
}

func (h *collectHandler) nextMessage(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-h.msgCh:
		return msg
	case <-time.After(testWait):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func (h *collectHandler) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.doneCh:
	case err := <-h.errCh:
		t.Fatalf("read loop failed: %v", err)
	case <-time.After(testWait):
		t.Fatal("timed out waiting for end of stream")
	}
}

func (h *collectHandler) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-h.doneCh:
		t.Fatal("read loop ended cleanly, want error")
		return nil
	case <-time.After(testWait):
		t.Fatal("timed out waiting for read loop error")
		return nil
	}
}

// newTestServer starts a WebSocket server whose session function runs
// once per accepted connection. Returns the ws URL.
func newTestServer(t *testing.T, session func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{
		Subprotocols: []string{wire.SubprotocolV1JSON},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		session(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T, url string, cfg Config) *WebSocketConn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	conn, err := Dial(ctx, url, nil, cfg)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDialAndReceive(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","message":1}`))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	conn := dialTest(t, url, Config{})
	handler := newCollectHandler()
	conn.Listen(handler)

	first := handler.nextMessage(t)
	if first.Binary {
		t.Error("first message Binary = true, want false")
	}
	if string(first.Data) != `{"type":"welcome"}` {
		t.Errorf("first message = %s, want welcome frame", first.Data)
	}

	second := handler.nextMessage(t)
	if string(second.Data) != `{"type":"ping","message":1}` {
		t.Errorf("second message = %s, want ping frame", second.Data)
	}

	handler.waitDone(t)
}

func TestDialNegotiatesSubprotocol(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // hold the session open until the client closes
	})

	conn := dialTest(t, url, Config{})
	if got := conn.Subprotocol(); got != wire.SubprotocolV1JSON {
		t.Errorf("Subprotocol() = %q, want %q", got, wire.SubprotocolV1JSON)
	}
	if conn.RemoteAddr() == "" {
		t.Error("RemoteAddr() = empty string")
	}
}

func TestSendEcho(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(msgType, data)
		conn.ReadMessage()
	})

	conn := dialTest(t, url, Config{})
	handler := newCollectHandler()
	conn.Listen(handler)

	cmd := []byte(`{"command":"subscribe","identifier":"{\"channel\":\"ChatChannel\"}"}`)
	if err := conn.Send(cmd); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	echo := handler.nextMessage(t)
	if string(echo.Data) != string(cmd) {
		t.Errorf("echo = %s, want %s", echo.Data, cmd)
	}
}

func TestBinaryFrameFlagged(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.ReadMessage()
	})

	conn := dialTest(t, url, Config{})
	handler := newCollectHandler()
	conn.Listen(handler)

	msg := handler.nextMessage(t)
	if !msg.Binary {
		t.Error("Binary = false for a binary frame, want true")
	}
}

func TestLocalClose(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	conn := dialTest(t, url, Config{})
	handler := newCollectHandler()
	conn.Listen(handler)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A locally initiated close ends the stream without a fault.
	handler.waitDone(t)

	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	if err := conn.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() after close error = %v, want ErrConnectionClosed", err)
	}
}

func TestReadLimitExceeded(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, make([]byte, 256))
		conn.ReadMessage()
	})

	conn := dialTest(t, url, Config{MaxMessageSize: 64})
	handler := newCollectHandler()
	conn.Listen(handler)

	// An oversized frame is a transport fault, not a clean end.
	handler.waitError(t)
}

func TestDialRejectedUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, err := Dial(ctx, url, nil, Config{}); err == nil {
		t.Error("Dial() against a non-WebSocket endpoint expected error, got nil")
	}
}

func TestDialSendsHeaders(t *testing.T) {
	gotAuth := make(chan string, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer token123")

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(ctx, url, header, Config{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case auth := <-gotAuth:
		if auth != "Bearer token123" {
			t.Errorf("Authorization header = %q, want %q", auth, "Bearer token123")
		}
	case <-time.After(testWait):
		t.Fatal("timed out waiting for handshake request")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want %v", cfg.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", cfg.MaxMessageSize, DefaultMaxMessageSize)
	}
	if len(cfg.Subprotocols) != 2 || cfg.Subprotocols[0] != wire.SubprotocolV1JSON {
		t.Errorf("Subprotocols = %v, want v1-json first", cfg.Subprotocols)
	}

	// Explicit settings survive.
	custom := Config{HandshakeTimeout: time.Second, Subprotocols: []string{"other"}}.withDefaults()
	if custom.HandshakeTimeout != time.Second {
		t.Errorf("HandshakeTimeout = %v, want 1s", custom.HandshakeTimeout)
	}
	if len(custom.Subprotocols) != 1 || custom.Subprotocols[0] != "other" {
		t.Errorf("Subprotocols = %v, want [other]", custom.Subprotocols)
	}
}
