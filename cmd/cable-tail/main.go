// Command cable-tail subscribes to an ActionCable channel and prints
// every broadcast to stdout, one JSON document per line.
//
// Usage:
//
//	cable-tail [flags] <channel> [key=value ...]
//
// Flags:
//
//	-url string                Server URL (ws:// or wss://)
//	-config string             YAML configuration file
//	-connect-timeout duration  Dial plus handshake deadline (default 30s)
//	-ping-timeout duration     Heartbeat deadline (default 6s)
//	-header value              Extra handshake header, "Name: value" (repeatable)
//	-protocol-log string       Write protocol events to a .clog file
//	-v                         Mirror protocol events to stderr
//
// The channel argument plus any key=value params select the
// subscription; values parse as int, float, bool, then string. Flags
// override file values, and a channel given on the command line
// replaces the file's channel and params entirely.
//
// Config file format (YAML):
//
//	url: wss://cable.example.com/cable
//	connect_timeout: 10s
//	ping_timeout: 6s
//	headers:
//	  Authorization: Bearer t0ken
//	channel: ChatChannel
//	params:
//	  room: 42
//	protocol_log: session.clog
//
// Examples:
//
//	# Tail a chat room
//	cable-tail -url ws://localhost:28080/cable ChatChannel room=42
//
//	# Everything from a config file, capturing protocol traffic
//	cable-tail -config chat.yaml -protocol-log session.clog
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cable-protocol/cable-go/pkg/cable"
	clog "github.com/cable-protocol/cable-go/pkg/log"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var (
		urlFlag        = flag.String("url", "", "Server URL (ws:// or wss://)")
		configFlag     = flag.String("config", "", "YAML configuration file")
		connectTimeout = flag.Duration("connect-timeout", cable.DefaultConnectTimeout, "Dial plus handshake deadline")
		pingTimeout    = flag.Duration("ping-timeout", cable.DefaultPingTimeout, "Heartbeat deadline")
		protocolLog    = flag.String("protocol-log", "", "Write protocol events to a .clog file")
		verbose        = flag.Bool("v", false, "Mirror protocol events to stderr")
	)
	var headers headerFlag
	flag.Var(&headers, "header", `Extra handshake header, "Name: value" (repeatable)`)

	flag.Parse()

	var cfg Config
	if *configFlag != "" {
		var err error
		cfg, err = loadConfigFile(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Flags override file values.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["url"] {
		cfg.URL = *urlFlag
	}
	if set["connect-timeout"] {
		cfg.ConnectTimeout = Duration(*connectTimeout)
	}
	if set["ping-timeout"] {
		cfg.PingTimeout = Duration(*pingTimeout)
	}
	if set["protocol-log"] {
		cfg.ProtocolLog = *protocolLog
	}

	if args := flag.Args(); len(args) > 0 {
		cfg.Channel = args[0]
		cfg.Params = nil
		for _, arg := range args[1:] {
			key, value, err := parseParam(arg)
			if err != nil {
				log.Fatalf("Invalid argument: %v", err)
			}
			if cfg.Params == nil {
				cfg.Params = make(map[string]any)
			}
			cfg.Params[key] = value
		}
	}

	if cfg.URL == "" {
		log.Fatal("Server URL required (-url or config file)")
	}
	if cfg.Channel == "" {
		log.Fatal("Channel required (argument or config file)")
	}

	run(cfg, headers.header, *verbose)
}

func run(cfg Config, extraHeader http.Header, verbose bool) {
	cableCfg := cable.DefaultConfig()
	if cfg.ConnectTimeout != 0 {
		cableCfg.ConnectTimeout = time.Duration(cfg.ConnectTimeout)
	}
	if cfg.PingTimeout != 0 {
		cableCfg.PingTimeout = time.Duration(cfg.PingTimeout)
	}

	// Handshake headers: file values first, -header flags on top.
	header := http.Header{}
	for name, value := range cfg.Headers {
		header.Set(name, value)
	}
	for name, values := range extraHeader {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	if len(header) > 0 {
		cableCfg.Header = header
	}

	var loggers []clog.Logger
	if cfg.ProtocolLog != "" {
		fileLogger, err := clog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		loggers = append(loggers, fileLogger)
	}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, clog.NewSlogAdapter(slog.New(handler)))
	}
	switch len(loggers) {
	case 0:
		// Logging stays disabled.
	case 1:
		cableCfg.Logger = loggers[0]
	default:
		cableCfg.Logger = clog.NewMultiLogger(loggers...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := cable.Connect(ctx, cfg.URL, cableCfg)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	log.Printf("Connected to %s (conn %s)", cfg.URL, conn.ID())

	ch, err := conn.Channel(cfg.Channel, cfg.Params)
	if err != nil {
		log.Fatalf("Invalid channel: %v", err)
	}

	sub, err := ch.Subscribe(ctx)
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}
	log.Printf("Subscribed to %s", ch.Identifier())

	// A signal closes the connection, which ends the message stream.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		conn.Close()
	}()

	for msg := range sub.Messages() {
		fmt.Println(string(msg))
	}

	if err := sub.Err(); err != nil {
		log.Fatalf("Connection lost: %v", err)
	}
	log.Println("Connection closed")
}
