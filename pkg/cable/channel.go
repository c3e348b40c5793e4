package cable

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cable-protocol/cable-go/pkg/wire"
)

// Channel is one logical subscription multiplexed over a Connection,
// identified by its canonical identifier. Channels are created by
// Connection.Channel and live for the lifetime of their connection.
//
// Activation is lazy: no subscribe command goes out until a consumer
// attaches via Listen or Subscribe, and the last consumer cancelling
// sends the unsubscribe. The server's verdict arrives asynchronously
// as a confirm or reject frame.
type Channel struct {
	conn *Connection
	name string
	id   string

	// Guarded by conn.mu.
	status Status
	subs   []*Subscription

	// cycle is the confirmation latch of the current subscribe cycle,
	// shared by every consumer attached during that cycle. A fresh
	// cycle gets a fresh latch.
	cycle *latch
}

func newChannel(conn *Connection, name, id string) *Channel {
	return &Channel{
		conn:   conn,
		name:   name,
		id:     id,
		status: StatusUnsubscribed,
	}
}

// Name returns the channel's class name.
func (ch *Channel) Name() string {
	return ch.name
}

// Identifier returns the canonical identifier string used on the wire.
func (ch *Channel) Identifier() string {
	return ch.id
}

// Status returns the channel's current subscription status.
func (ch *Channel) Status() Status {
	ch.conn.mu.Lock()
	defer ch.conn.mu.Unlock()
	return ch.status
}

// Listen attaches a consumer to the channel's message stream. The
// first live consumer sends the subscribe command; further consumers
// share the outstanding cycle, so exactly one command is in flight per
// identifier no matter how many attach concurrently. After the server
// rejected a cycle or the channel was fully unsubscribed, a new
// consumer restarts the cycle with a fresh subscribe command.
//
// On a closed connection Listen fails with the stored close cause, or
// ErrConnectionClosed after an explicit close.
func (ch *Channel) Listen() (*Subscription, error) {
	c := ch.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil, c.closedErrLocked()
	}

	if ch.status == StatusUnsubscribed || ch.status == StatusRejected {
		if err := c.sendCommandLocked(&wire.Command{
			Command:    wire.CommandSubscribe,
			Identifier: ch.id,
		}); err != nil {
			return nil, err
		}
		ch.cycle = newLatch()
		ch.setStatusLocked(StatusSubscribing, "")
	}

	sub := &Subscription{
		channel:  ch,
		cycle:    ch.cycle,
		messages: make(chan json.RawMessage, c.cfg.SubscriptionBuffer),
		done:     make(chan struct{}),
	}
	ch.subs = append(ch.subs, sub)
	return sub, nil
}

// Subscribe attaches a consumer and waits for the server to confirm
// the subscription. On failure, including rejection and ctx expiry,
// the consumer is detached before the error is returned.
func (ch *Channel) Subscribe(ctx context.Context) (*Subscription, error) {
	sub, err := ch.Listen()
	if err != nil {
		return nil, err
	}
	if err := sub.Confirmed(ctx); err != nil {
		sub.Cancel()
		return nil, err
	}
	return sub, nil
}

// Perform sends an action to the server on this channel. It is
// fire-and-forget: the protocol defines no acknowledgement, and the
// server silently ignores actions from senders it does not consider
// subscribed, so Perform is callable in any status.
//
// On a closed connection Perform fails with the stored close cause, or
// ErrConnectionClosed after an explicit close.
func (ch *Channel) Perform(action string, data map[string]any) error {
	c := ch.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return c.closedErrLocked()
	}

	payload, err := wire.EncodeActionData(action, data)
	if err != nil {
		return err
	}
	return c.sendCommandLocked(&wire.Command{
		Command:    wire.CommandMessage,
		Identifier: ch.id,
		Data:       payload,
	})
}

// setStatusLocked transitions the channel status and logs the change.
func (ch *Channel) setStatusLocked(status Status, reason string) {
	old := ch.status
	ch.status = status
	ch.conn.logChannelStatusLocked(ch, old, status, reason)
}

// confirmLocked handles a confirm_subscription frame. A confirm
// arriving outside a pending cycle (for instance crossing an
// unsubscribe in flight) has no effect.
func (ch *Channel) confirmLocked() {
	if ch.status != StatusSubscribing {
		return
	}
	ch.setStatusLocked(StatusSubscribed, "")
	ch.cycle.settle(nil)
}

// rejectLocked handles a reject_subscription frame: the rejection is
// delivered to every live consumer and all their streams end. No
// unsubscribe command is sent. The status stays rejected until a new
// consumer restarts the cycle.
func (ch *Channel) rejectLocked() {
	if ch.status != StatusSubscribing {
		return
	}

	rejection := &CloseError{
		Code:   CodeSubscriptionRejected,
		Reason: fmt.Sprintf("subscription to %s rejected by server", ch.name),
	}
	ch.setStatusLocked(StatusRejected, "rejected by server")
	ch.cycle.settle(rejection)

	for _, sub := range ch.subs {
		sub.endLocked(rejection)
	}
	ch.subs = nil
}

// deliverLocked routes a data frame payload to every live consumer.
// Frames can arrive for a subscription that is still settling or was
// already torn down; those are dropped without an error.
func (ch *Channel) deliverLocked(payload json.RawMessage) {
	if ch.status != StatusSubscribed {
		return
	}
	for _, sub := range ch.subs {
		sub.deliverLocked(payload)
	}
}

// disconnectLocked ends the channel as part of the connection close
// sweep. cause is nil for an explicit local close, in which case the
// streams end without an error.
func (ch *Channel) disconnectLocked(cause *CloseError) {
	if ch.status == StatusDisconnected {
		return
	}

	reason := ""
	if cause != nil {
		reason = cause.Code.String()
	}
	ch.setStatusLocked(StatusDisconnected, reason)

	if ch.cycle != nil {
		if cause != nil {
			ch.cycle.settle(cause)
		} else {
			ch.cycle.settle(ErrConnectionClosed)
		}
	}

	for _, sub := range ch.subs {
		if cause != nil {
			sub.endLocked(cause)
		} else {
			sub.endLocked(nil)
		}
	}
	ch.subs = nil
}

// removeSubLocked detaches one consumer from the channel.
func (ch *Channel) removeSubLocked(sub *Subscription) {
	for i, s := range ch.subs {
		if s == sub {
			ch.subs = append(ch.subs[:i], ch.subs[i+1:]...)
			return
		}
	}
}

// Subscription is one consumer's handle on a channel's message stream.
// Obtained from Channel.Listen or Channel.Subscribe; released with
// Cancel.
type Subscription struct {
	channel  *Channel
	cycle    *latch
	messages chan json.RawMessage
	done     chan struct{}

	// Guarded by the connection mutex.
	ended bool
	err   error
}

// Messages returns the inbound message stream. The channel closes when
// the subscription ends for any reason; Err reports the terminal cause
// afterwards.
func (s *Subscription) Messages() <-chan json.RawMessage {
	return s.messages
}

// Err returns the cause that ended the stream: the rejection, the
// connection's close cause, or nil after a plain Cancel or an explicit
// connection Close. Before the stream ends Err returns nil.
func (s *Subscription) Err() error {
	c := s.channel.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.err
}

// Confirmed blocks until the server answers the subscribe command this
// consumer is attached to. It returns nil once confirmed, the
// rejection or connection close cause on failure, ErrUnsubscribed if
// this consumer was cancelled while the verdict was pending, or
// ctx.Err. Safe for any number of concurrent waiters.
func (s *Subscription) Confirmed(ctx context.Context) error {
	// A settled cycle answers immediately and permanently.
	select {
	case <-s.cycle.done:
		return s.cycle.err
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.cycle.done:
		return s.cycle.err
	case <-s.done:
		// The stream ended; prefer the cycle's verdict if it settled
		// in the same sweep.
		select {
		case <-s.cycle.done:
			return s.cycle.err
		default:
		}
		return ErrUnsubscribed
	}
}

// Cancel detaches this consumer. When the last live consumer of a
// subscribing or subscribed channel cancels, the unsubscribe command
// goes out and the channel returns to unsubscribed. Idempotent, and a
// no-op once the stream already ended.
func (s *Subscription) Cancel() {
	ch := s.channel
	c := ch.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.ended {
		return
	}
	s.endLocked(nil)
	ch.removeSubLocked(s)

	if len(ch.subs) > 0 {
		return
	}
	if ch.status != StatusSubscribing && ch.status != StatusSubscribed {
		return
	}

	// The protocol has no acknowledgement for unsubscribe; a send
	// failure is ignored.
	_ = c.sendCommandLocked(&wire.Command{
		Command:    wire.CommandUnsubscribe,
		Identifier: ch.id,
	})
	ch.cycle.settle(ErrUnsubscribed)
	ch.setStatusLocked(StatusUnsubscribed, "")
}

// deliverLocked hands one message to this consumer without ever
// blocking the dispatch goroutine. A full buffer drops the message and
// logs the drop.
func (s *Subscription) deliverLocked(payload json.RawMessage) {
	select {
	case s.messages <- payload:
	default:
		ch := s.channel
		ch.conn.logErrorLocked(ch.id, "",
			fmt.Sprintf("subscriber buffer full, dropped %d byte message", len(payload)),
			"deliver")
	}
}

// endLocked finalizes the stream exactly once: the terminal cause is
// recorded and the message channel closes.
func (s *Subscription) endLocked(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.done)
	close(s.messages)
}
