package cable

import (
	"context"
	"errors"

	"github.com/cable-protocol/cable-go/pkg/transport"
)

// Connect dials the server at url, performs the protocol handshake and
// returns an open connection. The whole sequence is bounded by
// cfg.ConnectTimeout; a shorter ctx deadline wins.
//
// Failures are classified: a dial failure returns a NetworkError
// wrapping the cause, an early disconnect returns its mapped error, a
// protocol violation during the handshake returns a ProtocolError, and
// expiry of the timeout returns a NetworkError. In every failure case
// the connection is closed before Connect returns, and a handshake
// frame that arrives after the timeout settles harmlessly without a
// second report.
func Connect(ctx context.Context, url string, cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	tc, err := transport.Dial(ctx, url, cfg.Header, cfg.Transport)
	if err != nil {
		return nil, networkError(err)
	}

	conn := NewConnection(tc, cfg)
	if err := conn.Welcomed(ctx); err != nil {
		conn.Close()

		var cerr *CloseError
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &CloseError{
				Code:   CodeNetworkError,
				Reason: "timeout awaiting welcome",
				Cause:  err,
			}
		}
		return nil, err
	}
	return conn, nil
}
