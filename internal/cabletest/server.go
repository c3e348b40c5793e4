// Package cabletest provides a scripted in-process ActionCable server
// for tests. A test dials Server.URL with the real client, accepts the
// resulting Session, and drives the server side of the conversation
// frame by frame.
package cabletest

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cable-protocol/cable-go/pkg/wire"
)

// wait bounds every scripted exchange.
const wait = 5 * time.Second

// Options configure server behavior.
type Options struct {
	// NoWelcome suppresses the welcome frame normally sent as soon as
	// a client connects.
	NoWelcome bool

	// AutoConfirm answers every subscribe command with a matching
	// confirm_subscription frame.
	AutoConfirm bool

	// TLS serves wss instead of ws, with a self-signed certificate
	// available via Certificate.
	TLS bool
}

// Server is a scripted ActionCable server bound to an httptest
// listener. Every accepted WebSocket becomes a Session.
type Server struct {
	t    *testing.T
	opts Options

	srv      *httptest.Server
	sessions chan *Session

	mu       sync.Mutex
	accepted []*Session
}

// NewServer starts a server. It shuts down with the test.
func NewServer(t *testing.T, opts Options) *Server {
	t.Helper()

	s := &Server{
		t:        t,
		opts:     opts,
		sessions: make(chan *Session, 4),
	}

	upgrader := websocket.Upgrader{
		Subprotocols: []string{wire.SubprotocolV1JSON, wire.SubprotocolUnsupported},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := newSession(t, conn, opts, header)
		s.mu.Lock()
		s.accepted = append(s.accepted, sess)
		s.mu.Unlock()

		if !opts.NoWelcome {
			_ = sess.writeFrame(`{"type":"welcome"}`)
		}
		s.sessions <- sess
		sess.readLoop()
	})
	if opts.TLS {
		s.srv = httptest.NewTLSServer(handler)
	} else {
		s.srv = httptest.NewServer(handler)
	}

	t.Cleanup(func() {
		s.mu.Lock()
		for _, sess := range s.accepted {
			_ = sess.conn.Close()
		}
		s.mu.Unlock()
		s.srv.Close()
	})

	return s
}

// URL returns the address clients dial: ws://, or wss:// with the TLS
// option.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Certificate returns the server certificate when serving TLS, for
// building a client trust pool. Nil otherwise.
func (s *Server) Certificate() *x509.Certificate {
	return s.srv.Certificate()
}

// Accept returns the next accepted session.
func (s *Server) Accept() *Session {
	s.t.Helper()
	select {
	case sess := <-s.sessions:
		return sess
	case <-time.After(wait):
		s.t.Fatal("cabletest: timed out waiting for a connection")
		return nil
	}
}

// Session is the server side of one accepted connection. Script
// methods fail the test if the peer is gone.
type Session struct {
	t      *testing.T
	conn   *websocket.Conn
	opts   Options
	header http.Header

	writeMu sync.Mutex

	commands chan wire.Command
	closed   chan struct{}
}

func newSession(t *testing.T, conn *websocket.Conn, opts Options, header http.Header) *Session {
	return &Session{
		t:        t,
		conn:     conn,
		opts:     opts,
		header:   header,
		commands: make(chan wire.Command, 16),
		closed:   make(chan struct{}),
	}
}

// Header returns the HTTP headers the client sent with the upgrade
// request.
func (s *Session) Header() http.Header {
	return s.header
}

// readLoop decodes client commands until the socket dies. AutoConfirm
// answers a subscribe before the command is surfaced, so the confirm
// is on the wire by the time a test reacts to it.
func (s *Session) readLoop() {
	defer close(s.closed)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wire.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		if s.opts.AutoConfirm && cmd.Command == wire.CommandSubscribe {
			_ = s.writeFrame(`{"type":"confirm_subscription","identifier":` + strconv.Quote(cmd.Identifier) + `}`)
		}
		s.commands <- cmd
	}
}

func (s *Session) writeFrame(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// SendRaw transmits one text frame verbatim.
func (s *Session) SendRaw(frame string) {
	s.t.Helper()
	if err := s.writeFrame(frame); err != nil {
		s.t.Fatalf("cabletest: write frame: %v", err)
	}
}

// SendBinary transmits one binary frame.
func (s *Session) SendBinary(data []byte) {
	s.t.Helper()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.t.Fatalf("cabletest: write binary frame: %v", err)
	}
}

// Welcome sends the handshake frame.
func (s *Session) Welcome() {
	s.t.Helper()
	s.SendRaw(`{"type":"welcome"}`)
}

// Ping sends a heartbeat frame carrying the current Unix timestamp.
func (s *Session) Ping() {
	s.t.Helper()
	s.SendRaw(fmt.Sprintf(`{"type":"ping","message":%d}`, time.Now().Unix()))
}

// Confirm confirms a subscription.
func (s *Session) Confirm(identifier string) {
	s.t.Helper()
	s.SendRaw(`{"type":"confirm_subscription","identifier":` + strconv.Quote(identifier) + `}`)
}

// Reject rejects a subscription.
func (s *Session) Reject(identifier string) {
	s.t.Helper()
	s.SendRaw(`{"type":"reject_subscription","identifier":` + strconv.Quote(identifier) + `}`)
}

// Message sends a data frame. payload must be valid JSON.
func (s *Session) Message(identifier, payload string) {
	s.t.Helper()
	s.SendRaw(`{"identifier":` + strconv.Quote(identifier) + `,"message":` + payload + `}`)
}

// Disconnect sends a disconnect frame. An empty reason omits the field
// entirely, which classifies differently from any present value.
func (s *Session) Disconnect(reason string, reconnect bool) {
	s.t.Helper()
	frame := `{"type":"disconnect"`
	if reason != "" {
		frame += `,"reason":` + strconv.Quote(reason)
	}
	if reconnect {
		frame += `,"reconnect":true`
	}
	frame += `}`
	s.SendRaw(frame)
}

// NextCommand returns the next command the client sent.
func (s *Session) NextCommand() wire.Command {
	s.t.Helper()
	select {
	case cmd := <-s.commands:
		return cmd
	case <-time.After(wait):
		s.t.Fatal("cabletest: timed out waiting for a command")
		return wire.Command{}
	}
}

// ExpectNoCommand asserts the client stays quiet for the window.
func (s *Session) ExpectNoCommand(window time.Duration) {
	s.t.Helper()
	select {
	case cmd := <-s.commands:
		s.t.Fatalf("cabletest: unexpected %s command for %s", cmd.Command, cmd.Identifier)
	case <-time.After(window):
	}
}

// Close closes the session cleanly: close frame, then the socket.
func (s *Session) Close() {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

// Drop kills the socket without a close frame, simulating a network
// fault.
func (s *Session) Drop() {
	_ = s.conn.Close()
}

// WaitClosed blocks until the client side went away.
func (s *Session) WaitClosed() {
	s.t.Helper()
	select {
	case <-s.closed:
	case <-time.After(wait):
		s.t.Fatal("cabletest: timed out waiting for the client to close")
	}
}
