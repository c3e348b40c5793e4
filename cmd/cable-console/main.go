// Command cable-console is an interactive ActionCable client console.
//
// It drives a single connection by hand: connect, subscribe to
// channels, perform actions and watch broadcasts arrive, which makes
// it useful for poking at a cable server during development.
//
// Usage:
//
//	cable-console [flags]
//
// Flags:
//
//	-url string                Connect to this URL at startup
//	-connect-timeout duration  Dial plus handshake deadline (default 30s)
//	-ping-timeout duration     Heartbeat deadline (default 6s)
//	-protocol-log string       Write protocol events to a .clog file
//
// Commands:
//
//	connect <url>                              Open a connection
//	disconnect                                 Close the connection
//	subscribe <channel> [key=value ...]        Subscribe to a channel
//	unsubscribe <channel>                      Cancel a subscription
//	perform <channel> <action> [key=value ...] Invoke a server action
//	channels                                   List subscriptions
//	status                                     Show connection state
//	help                                       Show this help
//	quit                                       Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/cable-protocol/cable-go/pkg/cable"
	clog "github.com/cable-protocol/cable-go/pkg/log"
)

// subscribeTimeout bounds the wait for a subscription confirmation.
const subscribeTimeout = 10 * time.Second

func main() {
	var (
		urlFlag        = flag.String("url", "", "Connect to this URL at startup")
		connectTimeout = flag.Duration("connect-timeout", cable.DefaultConnectTimeout, "Dial plus handshake deadline")
		pingTimeout    = flag.Duration("ping-timeout", cable.DefaultPingTimeout, "Heartbeat deadline")
		protocolLog    = flag.String("protocol-log", "", "Write protocol events to a .clog file")
	)
	flag.Parse()

	cfg := cable.DefaultConfig()
	cfg.ConnectTimeout = *connectTimeout
	cfg.PingTimeout = *pingTimeout

	if *protocolLog != "" {
		fileLogger, err := clog.NewFileLogger(*protocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		cfg.Logger = fileLogger
	}

	console, err := NewConsole(cfg)
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}

	if *urlFlag != "" {
		console.cmdConnect([]string{*urlFlag})
	}

	console.Run()
}

// consoleSub tracks one live subscription.
type consoleSub struct {
	ch  *cable.Channel
	sub *cable.Subscription
}

// Console holds the interactive session state. The command loop runs
// on one goroutine; only the subscription map is shared with the
// message pumps.
type Console struct {
	rl  *readline.Instance
	cfg cable.Config

	conn *cable.Connection

	mu   sync.Mutex
	subs map[string]*consoleSub
}

// NewConsole creates the console and its readline instance.
func NewConsole(cfg cable.Config) (*Console, error) {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".cable_console_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cable> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		rl:   rl,
		cfg:  cfg,
		subs: make(map[string]*consoleSub),
	}, nil
}

// Run starts the interactive command loop.
func (c *Console) Run() {
	defer c.rl.Close()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			c.quit()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "connect", "c":
			c.cmdConnect(args)

		case "disconnect", "d":
			c.cmdDisconnect()

		case "subscribe", "sub", "s":
			c.cmdSubscribe(args)

		case "unsubscribe", "unsub", "u":
			c.cmdUnsubscribe(args)

		case "perform", "p":
			c.cmdPerform(args)

		case "channels", "ch":
			c.cmdChannels()

		case "status", "st":
			c.cmdStatus()

		case "quit", "exit", "q":
			c.quit()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Cable Console Commands:
  Connection:
    connect <url>       - Open a connection (ws:// or wss://)
    disconnect          - Close the connection
    status              - Show connection state

  Channels:
    subscribe <channel> [key=value ...]        - Subscribe to a channel
    unsubscribe <channel>                      - Cancel a subscription
    perform <channel> <action> [key=value ...] - Invoke a server action
    channels                                   - List subscriptions

  General:
    help                - Show this help
    quit                - Exit

  Parameter values parse as int, float, bool, then string:
    subscribe ChatChannel room=42
    perform ChatChannel speak body=hello`)
}

func (c *Console) quit() {
	fmt.Fprintln(c.rl.Stdout(), "Exiting...")
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// cmdConnect handles the connect command.
func (c *Console) cmdConnect(args []string) {
	if c.conn != nil && c.conn.State() != cable.StateClosed {
		fmt.Fprintln(c.rl.Stdout(), "Already connected (disconnect first)")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: connect <url>")
		return
	}
	url := args[0]

	cfg := c.cfg
	cfg.OnError = func(cerr *cable.CloseError) {
		fmt.Fprintf(c.rl.Stdout(), "\nConnection lost: %v\n", cerr)
		c.rl.Refresh()
	}

	fmt.Fprintf(c.rl.Stdout(), "Connecting to %s...\n", url)
	conn, err := cable.Connect(context.Background(), url, cfg)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}

	c.conn = conn
	fmt.Fprintf(c.rl.Stdout(), "Connected (conn %s)\n", conn.ID())
}

// cmdDisconnect handles the disconnect command.
func (c *Console) cmdDisconnect() {
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}

	_ = c.conn.Close()
	c.conn = nil
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

// cmdSubscribe handles the subscribe command.
func (c *Console) cmdSubscribe(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: subscribe <channel> [key=value ...]")
		return
	}
	if c.conn == nil || c.conn.State() != cable.StateOpen {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect <url>')")
		return
	}

	name := args[0]
	c.mu.Lock()
	_, exists := c.subs[name]
	c.mu.Unlock()
	if exists {
		fmt.Fprintf(c.rl.Stdout(), "Already subscribed to %s (unsubscribe first)\n", name)
		return
	}

	params, err := parseParams(args[1:])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid parameter: %v\n", err)
		return
	}

	ch, err := c.conn.Channel(name, params)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid channel: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	sub, err := ch.Subscribe(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Subscribe failed: %v\n", err)
		return
	}

	c.mu.Lock()
	c.subs[name] = &consoleSub{ch: ch, sub: sub}
	c.mu.Unlock()

	fmt.Fprintf(c.rl.Stdout(), "Subscribed to %s\n", ch.Identifier())

	go c.pump(name, sub)
}

// pump prints broadcasts for one subscription until its stream ends.
func (c *Console) pump(name string, sub *cable.Subscription) {
	for msg := range sub.Messages() {
		fmt.Fprintf(c.rl.Stdout(), "\n[%s] %s: %s\n", time.Now().Format("15:04:05"), name, msg)
		c.rl.Refresh()
	}

	c.mu.Lock()
	delete(c.subs, name)
	c.mu.Unlock()

	if err := sub.Err(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "\nSubscription %s ended: %v\n", name, err)
		c.rl.Refresh()
	}
}

// cmdUnsubscribe handles the unsubscribe command.
func (c *Console) cmdUnsubscribe(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unsubscribe <channel>")
		return
	}
	name := args[0]

	c.mu.Lock()
	entry, ok := c.subs[name]
	c.mu.Unlock()
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Not subscribed to %s\n", name)
		return
	}

	entry.sub.Cancel()
	fmt.Fprintf(c.rl.Stdout(), "Unsubscribed from %s\n", name)
}

// cmdPerform handles the perform command.
func (c *Console) cmdPerform(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: perform <channel> <action> [key=value ...]")
		return
	}
	name, action := args[0], args[1]

	c.mu.Lock()
	entry, ok := c.subs[name]
	c.mu.Unlock()
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Not subscribed to %s\n", name)
		return
	}

	data, err := parseParams(args[2:])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid parameter: %v\n", err)
		return
	}

	if err := entry.ch.Perform(action, data); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Perform failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

// cmdChannels lists the live subscriptions.
func (c *Console) cmdChannels() {
	c.mu.Lock()
	names := make([]string, 0, len(c.subs))
	for name := range c.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]*consoleSub, len(names))
	for i, name := range names {
		entries[i] = c.subs[name]
	}
	c.mu.Unlock()

	if len(names) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No subscriptions")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nSubscriptions (%d):\n", len(names))
	for i, name := range names {
		fmt.Fprintf(c.rl.Stdout(), "  %-12s %-12s %s\n", name, entries[i].ch.Status(), entries[i].ch.Identifier())
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdStatus shows the connection state.
func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nConnection Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "  Not connected")
	} else {
		fmt.Fprintf(c.rl.Stdout(), "  State:   %s\n", c.conn.State())
		fmt.Fprintf(c.rl.Stdout(), "  Conn ID: %s\n", c.conn.ID())
		if cause := c.conn.CloseCause(); cause != nil {
			fmt.Fprintf(c.rl.Stdout(), "  Cause:   %v\n", cause)
		}
	}

	c.mu.Lock()
	count := len(c.subs)
	c.mu.Unlock()
	fmt.Fprintf(c.rl.Stdout(), "  Subscriptions: %d\n", count)
	fmt.Fprintln(c.rl.Stdout())
}

// parseParams converts key=value arguments into channel params.
// Values parse as int, float, bool, then string.
func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
		}
		params[key] = parseParamValue(raw)
	}
	return params, nil
}

func parseParamValue(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return strings.Trim(raw, `"'`)
}
