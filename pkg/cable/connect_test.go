package cable_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cable-protocol/cable-go/internal/cabletest"
	"github.com/cable-protocol/cable-go/pkg/cable"
)

const connectWait = 5 * time.Second

func TestConnectHandshake(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{})

	conn, err := cable.Connect(context.Background(), srv.URL(), cable.Config{})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if got := conn.State(); got != cable.StateOpen {
		t.Errorf("State() = %v, want %v", got, cable.StateOpen)
	}
	if conn.ID() == "" {
		t.Error("ID() is empty")
	}

	sess := srv.Accept()
	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	sess.WaitClosed()

	if got := conn.State(); got != cable.StateClosed {
		t.Errorf("State() after Close = %v, want %v", got, cable.StateClosed)
	}
}

func TestConnectSendsHandshakeHeaders(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{})

	header := http.Header{}
	header.Set("Authorization", "Bearer sekrit")
	conn, err := cable.Connect(context.Background(), srv.URL(), cable.Config{Header: header})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	sess := srv.Accept()
	if got := sess.Header().Get("Authorization"); got != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sekrit")
	}
	if got := sess.Header().Get("Sec-Websocket-Protocol"); !strings.Contains(got, "actioncable-v1-json") {
		t.Errorf("subprotocol offer = %q, want it to include actioncable-v1-json", got)
	}
}

func TestConnectDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := cable.Connect(context.Background(), url, cable.Config{})
	if err == nil {
		t.Fatal("Connect() against a non-WebSocket endpoint succeeded")
	}

	var cerr *cable.CloseError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect() error = %T, want *CloseError", err)
	}
	if cerr.Code != cable.CodeNetworkError {
		t.Errorf("Code = %v, want %v", cerr.Code, cable.CodeNetworkError)
	}
	if cerr.Cause == nil {
		t.Error("Cause is nil, want the dial error")
	}
}

func TestConnectCanceledContext(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cable.Connect(ctx, srv.URL(), cable.Config{})
	if err == nil {
		t.Fatal("Connect() with canceled context succeeded")
	}

	var cerr *cable.CloseError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect() error = %T, want *CloseError", err)
	}
	if cerr.Code != cable.CodeNetworkError {
		t.Errorf("Code = %v, want %v", cerr.Code, cable.CodeNetworkError)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error chain %v does not include context.Canceled", err)
	}
}

func TestConnectWelcomeTimeout(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{NoWelcome: true})

	_, err := cable.Connect(context.Background(), srv.URL(), cable.Config{
		ConnectTimeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Connect() succeeded without a welcome")
	}

	var cerr *cable.CloseError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect() error = %T, want *CloseError", err)
	}
	if cerr.Code != cable.CodeNetworkError {
		t.Errorf("Code = %v, want %v", cerr.Code, cable.CodeNetworkError)
	}
	if cerr.Reason != "timeout awaiting welcome" {
		t.Errorf("Reason = %q, want %q", cerr.Reason, "timeout awaiting welcome")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error chain %v does not include context.DeadlineExceeded", err)
	}

	// Connect closes the socket before reporting the failure.
	sess := srv.Accept()
	sess.WaitClosed()
}

func TestConnectRefusedBeforeWelcome(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{NoWelcome: true})

	type result struct {
		conn *cable.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := cable.Connect(context.Background(), srv.URL(), cable.Config{})
		done <- result{conn, err}
	}()

	sess := srv.Accept()
	sess.Disconnect("unauthorized", false)

	var res result
	select {
	case res = <-done:
	case <-time.After(connectWait):
		t.Fatal("timed out waiting for Connect to return")
	}
	if res.err == nil {
		res.conn.Close()
		t.Fatal("Connect() succeeded after a refusal")
	}

	var cerr *cable.CloseError
	if !errors.As(res.err, &cerr) {
		t.Fatalf("Connect() error = %T, want *CloseError", res.err)
	}
	if cerr.Code != cable.CodeUnauthorized {
		t.Errorf("Code = %v, want %v", cerr.Code, cable.CodeUnauthorized)
	}
}

func TestConnectProtocolViolationBeforeWelcome(t *testing.T) {
	srv := cabletest.NewServer(t, cabletest.Options{NoWelcome: true})

	type result struct {
		conn *cable.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := cable.Connect(context.Background(), srv.URL(), cable.Config{})
		done <- result{conn, err}
	}()

	sess := srv.Accept()
	sess.SendBinary([]byte{0x83, 0x01, 0x02})

	var res result
	select {
	case res = <-done:
	case <-time.After(connectWait):
		t.Fatal("timed out waiting for Connect to return")
	}
	if res.err == nil {
		res.conn.Close()
		t.Fatal("Connect() succeeded after a binary frame")
	}

	var cerr *cable.CloseError
	if !errors.As(res.err, &cerr) {
		t.Fatalf("Connect() error = %T, want *CloseError", res.err)
	}
	if cerr.Code != cable.CodeProtocolError {
		t.Errorf("Code = %v, want %v", cerr.Code, cable.CodeProtocolError)
	}
	if cerr.Reason != "binary frame received" {
		t.Errorf("Reason = %q, want %q", cerr.Reason, "binary frame received")
	}
}
