// Command cable-log is a tool for viewing and analyzing cable protocol
// log files.
//
// Log files are created by wiring a log.FileLogger into cable.Config;
// cable-tail and cable-console do this when started with the
// -protocol-log flag.
//
// Usage:
//
//	cable-log <command> [flags] <file.clog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	cable-log view session.clog
//
//	# View only incoming frames
//	cable-log view -direction in -category frame session.clog
//
//	# View one channel's traffic
//	cable-log view -channel '{"channel":"ChatChannel"}' session.clog
//
//	# View a time window
//	cable-log view -time-start 2026-08-24T10:00:00Z session.clog
//
//	# Export to JSONL
//	cable-log export -format jsonl session.clog
//
//	# Filter by connection and save to new file
//	cable-log filter -conn-id abc12345 -o filtered.clog session.clog
//
//	# Show statistics
//	cable-log stats session.clog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cable-protocol/cable-go/cmd/cable-log/commands"
	"github.com/cable-protocol/cable-go/pkg/log"
)

const usage = `cable-log - Cable Protocol Log Analyzer

Usage:
  cable-log <command> [flags] <file.clog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "cable-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags holds the event-filter flags shared by the view and
// filter subcommands.
type filterFlags struct {
	connID    *string
	channel   *string
	direction *string
	category  *string
	timeStart *string
	timeEnd   *string
}

func registerFilterFlags(fs *flag.FlagSet) *filterFlags {
	return &filterFlags{
		connID:    fs.String("conn-id", "", "Filter by connection ID"),
		channel:   fs.String("channel", "", "Filter by canonical channel identifier"),
		direction: fs.String("direction", "", "Filter by direction (in, out)"),
		category:  fs.String("category", "", "Filter by category (frame, state, error)"),
		timeStart: fs.String("time-start", "", "Filter by start time (RFC3339)"),
		timeEnd:   fs.String("time-end", "", "Filter by end time (RFC3339)"),
	}
}

func (ff *filterFlags) build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: *ff.connID,
		Channel:      *ff.channel,
	}

	if *ff.direction != "" {
		d, err := commands.ParseDirectionFlag(*ff.direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}

	if *ff.category != "" {
		c, err := commands.ParseCategoryFlag(*ff.category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	if *ff.timeStart != "" {
		ts, err := time.Parse(time.RFC3339, *ff.timeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid -time-start: %v", err)
		}
		filter.TimeStart = &ts
	}

	if *ff.timeEnd != "" {
		te, err := time.Parse(time.RFC3339, *ff.timeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid -time-end: %v", err)
		}
		filter.TimeEnd = &te
	}

	return filter, nil
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cable-log view - View log file in human-readable format

Usage:
  cable-log view [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	ff := registerFilterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter, err := ff.build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cable-log export - Export log file to JSON or CSV format

Usage:
  cable-log export [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := commands.RunExport(path, *format, w); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cable-log filter - Filter log file and write to new file

Usage:
  cable-log filter [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	ff := registerFilterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter, err := ff.build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := commands.RunFilter(path, *output, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cable-log stats - Show statistics about the log file

Usage:
  cable-log stats <file.clog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
