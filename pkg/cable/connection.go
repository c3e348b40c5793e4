package cable

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cable-protocol/cable-go/pkg/identifier"
	"github.com/cable-protocol/cable-go/pkg/log"
	"github.com/cable-protocol/cable-go/pkg/transport"
	"github.com/cable-protocol/cable-go/pkg/wire"
)

// Connection multiplexes any number of logical channels over one
// transport session. It performs the welcome handshake, decodes and
// routes every inbound frame, watches the server heartbeat, and fans a
// terminal failure out to every consumer exactly once.
//
// A Connection never reconnects. After any close it is permanently
// dead and the caller must construct a new one.
type Connection struct {
	mu sync.Mutex

	id         string
	tc         transport.Conn
	cfg        Config
	logger     log.Logger
	onError    func(*CloseError)
	remoteAddr string

	// Guarded by mu.
	state      State
	closeCause *CloseError
	channels   map[string]*Channel

	// Handshake latch, settled once: nil on welcome, the close cause
	// if the connection dies first.
	welcomed *latch

	// Heartbeat deadline. Rearmed by welcome and ping frames; the
	// generation detects a stale timer that lost its Stop race.
	heartbeat    *time.Timer
	heartbeatGen uint64
}

// NewConnection binds a connection to an already-established transport
// and starts dispatching its frames. The handshake is driven by the
// server; use Welcomed to await it.
//
// Most callers should use Connect instead.
func NewConnection(tc transport.Conn, cfg Config) *Connection {
	cfg = cfg.withDefaults()

	c := &Connection{
		id:         uuid.New().String(),
		tc:         tc,
		cfg:        cfg,
		logger:     cfg.Logger,
		onError:    cfg.OnError,
		remoteAddr: tc.RemoteAddr(),
		state:      StateConnecting,
		channels:   make(map[string]*Channel),
		welcomed:   newLatch(),
	}

	tc.Listen(&transportHandler{conn: c})
	return c
}

// ID returns the connection's unique identifier, used to correlate
// protocol log events.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CloseCause returns the classified failure that closed the connection.
// Nil while the connection is live, and nil after an explicit Close.
func (c *Connection) CloseCause() *CloseError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCause
}

// Welcomed blocks until the server's welcome frame arrives or the
// connection dies first. Safe for any number of concurrent waiters;
// all observe the same outcome.
func (c *Connection) Welcomed(ctx context.Context) error {
	return c.welcomed.wait(ctx)
}

// Channel returns the channel for the given name and parameters,
// creating it on first use. Calls with the same canonical identifier
// return the same instance. The name must end in "Channel".
//
// On a closed connection Channel fails with the stored close cause, or
// ErrConnectionClosed after an explicit close.
func (c *Connection) Channel(name string, params map[string]any) (*Channel, error) {
	if !strings.HasSuffix(name, "Channel") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannelName, name)
	}

	id, err := identifier.Encode(name, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil, c.closedErrLocked()
	}

	if ch, ok := c.channels[id]; ok {
		return ch, nil
	}
	ch := newChannel(c, name, id)
	c.channels[id] = ch
	return ch, nil
}

// Close closes the connection explicitly: the heartbeat stops, the
// transport closes, and every consumer stream ends without an error.
// Safe to call more than once; only the first call has any effect. The
// error observer is never invoked for an explicit close.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(nil)
	return nil
}

// closedErrLocked returns the error reported for operations on a
// closed connection.
func (c *Connection) closedErrLocked() error {
	if c.closeCause != nil {
		return c.closeCause
	}
	return ErrConnectionClosed
}

// transportHandler adapts transport read-loop events onto the
// connection's dispatch path.
type transportHandler struct {
	conn *Connection
}

func (h *transportHandler) OnMessage(msg transport.Message) { h.conn.handleFrame(msg) }
func (h *transportHandler) OnError(err error)               { h.conn.handleTransportError(err) }
func (h *transportHandler) OnDone()                         { h.conn.handleStreamEnd() }

// handleFrame processes one inbound frame. Frames arriving after the
// connection closed are discarded.
func (c *Connection) handleFrame(msg transport.Message) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	c.logFrameLocked(log.DirectionIn, "", msg.Data)

	cerr := c.dispatchLocked(msg)
	if cerr == nil {
		c.mu.Unlock()
		return
	}
	c.closeWithError(cerr)
}

// handleTransportError processes a terminal transport fault.
func (c *Connection) handleTransportError(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.closeWithError(networkError(err))
}

// handleStreamEnd processes a clean end of the transport stream. The
// read loop also reports one after a local Close, which the state check
// discards.
func (c *Connection) handleStreamEnd() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	if c.state == StateOpen {
		c.closeWithError(&CloseError{
			Code:   CodeServerClosedConnection,
			Reason: "server closed the connection",
		})
		return
	}
	c.closeWithError(protocolError("connection closed before welcome"))
}

// dispatchLocked routes one decoded frame. A non-nil return is the
// classified failure that must close the connection.
func (c *Connection) dispatchLocked(msg transport.Message) *CloseError {
	if msg.Binary {
		return protocolError("binary frame received")
	}

	frame, err := wire.DecodeMessage(msg.Data)
	if err != nil {
		return protocolError(err.Error())
	}

	switch frame.Type {
	case wire.TypeWelcome:
		if c.state == StateConnecting {
			c.state = StateOpen
			c.welcomed.settle(nil)
			c.logConnStateLocked(StateConnecting, StateOpen, "")
		}
		c.armHeartbeatLocked()
		return nil

	case wire.TypeDisconnect:
		return classifyDisconnect(frame)

	case wire.TypePing:
		c.armHeartbeatLocked()
		return nil
	}

	// Everything below is channel-addressed and only valid once the
	// handshake completed.
	if c.state != StateOpen {
		return protocolError("message before welcome")
	}
	if frame.Identifier == "" {
		return protocolError("frame without identifier")
	}

	id, err := identifier.Normalize(frame.Identifier)
	if err != nil {
		return protocolError(err.Error())
	}
	ch, ok := c.channels[id]
	if !ok {
		return protocolError(fmt.Sprintf("unknown identifier %s", id))
	}

	switch frame.Type {
	case wire.TypeConfirmSubscription:
		ch.confirmLocked()
		return nil
	case wire.TypeRejectSubscription:
		ch.rejectLocked()
		return nil
	case "":
		ch.deliverLocked(frame.Message)
		return nil
	default:
		return protocolError(fmt.Sprintf("unexpected frame type %q", frame.Type))
	}
}

// armHeartbeatLocked (re)starts the heartbeat deadline.
func (c *Connection) armHeartbeatLocked() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}
	c.heartbeatGen++
	gen := c.heartbeatGen
	c.heartbeat = time.AfterFunc(c.cfg.PingTimeout, func() {
		c.heartbeatExpired(gen)
	})
}

// heartbeatExpired fires when no welcome or ping arrived within the
// window. A rearm bumps the generation, so a stale timer that lost its
// Stop race sees a mismatch and returns.
func (c *Connection) heartbeatExpired(gen uint64) {
	c.mu.Lock()
	if c.state == StateClosed || gen != c.heartbeatGen {
		c.mu.Unlock()
		return
	}
	c.closeWithError(&CloseError{
		Code:   CodePingTimeout,
		Reason: fmt.Sprintf("no ping received within %s", c.cfg.PingTimeout),
	})
}

// closeWithError runs the terminal close sweep for cerr and notifies
// the error observer. The caller must hold the mutex and have verified
// the connection is not already closed; the mutex is released before
// the observer runs.
func (c *Connection) closeWithError(cerr *CloseError) {
	c.closeLocked(cerr)
	observer := c.onError
	c.mu.Unlock()

	if observer != nil {
		observer(cerr)
	}
}

// closeLocked performs the close sweep exactly once: stop the
// heartbeat, close the transport, mark the connection terminal, settle
// the handshake latch if still pending, and end every channel. A nil
// cause marks an explicit close. No partial shutdown state is
// observable: the whole sweep happens under the mutex.
func (c *Connection) closeLocked(cause *CloseError) {
	if c.state == StateClosed {
		return
	}

	oldState := c.state
	c.state = StateClosed
	c.closeCause = cause

	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	c.tc.Close()

	if cause != nil {
		c.welcomed.settle(cause)
	} else {
		c.welcomed.settle(ErrConnectionClosed)
	}

	for _, ch := range c.channels {
		ch.disconnectLocked(cause)
	}

	reason := ""
	if cause != nil {
		reason = cause.Code.String()
	}
	c.logConnStateLocked(oldState, StateClosed, reason)
	if cause != nil {
		c.logErrorLocked("", cause.Code.String(), cause.Error(), "close")
	}
}

// sendCommandLocked encodes and transmits one outbound command frame.
func (c *Connection) sendCommandLocked(cmd *wire.Command) error {
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.logFrameLocked(log.DirectionOut, cmd.Identifier, data)

	if err := c.tc.Send(data); err != nil {
		return fmt.Errorf("send %s command: %w", cmd.Command, err)
	}
	return nil
}

// Protocol log emission. The logger defaults to NoopLogger, so these
// are unconditional.

func (c *Connection) logFrameLocked(dir log.Direction, channel string, data []byte) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Category:     log.CategoryFrame,
		RemoteAddr:   c.remoteAddr,
		Channel:      channel,
		Frame:        log.NewFrameEvent(data),
	})
}

func (c *Connection) logConnStateLocked(oldState, newState State, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (c *Connection) logChannelStatusLocked(ch *Channel, oldStatus, newStatus Status, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr,
		Channel:      ch.id,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityChannel,
			OldState: oldStatus.String(),
			NewState: newStatus.String(),
			Reason:   reason,
		},
	})
}

func (c *Connection) logErrorLocked(channel, code, message, context string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Category:     log.CategoryError,
		RemoteAddr:   c.remoteAddr,
		Channel:      channel,
		Error: &log.ErrorEventData{
			Code:    code,
			Message: message,
			Context: context,
		},
	})
}

// latch is a one-shot settlement cell: settle records an outcome and
// releases all waiters, and every later settle is a no-op. Waiters may
// arrive before or after settlement.
type latch struct {
	done    chan struct{}
	err     error
	settled bool
}

func newLatch() *latch {
	return &latch{done: make(chan struct{})}
}

// settle records the outcome. Must be called with the owning
// connection's mutex held.
func (l *latch) settle(err error) {
	if l.settled {
		return
	}
	l.settled = true
	l.err = err
	close(l.done)
}

// wait blocks until the latch settles or ctx ends.
func (l *latch) wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
