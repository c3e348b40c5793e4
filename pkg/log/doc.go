// Package log provides structured protocol logging for cable
// connections.
//
// This package defines the Logger interface and Event types for
// capturing protocol-level events: every frame sent or received,
// connection and channel state changes, and classified errors. It is
// separate from operational logging (slog) - protocol capture provides
// a complete machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary file
//	cfg.Logger, _ = log.NewFileLogger("session.clog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Each event carries exactly one payload:
//   - FrameEvent: a wire frame, with the payload captured up to
//     MaxFrameCapture bytes
//   - StateChangeEvent: a connection or channel transition
//   - ErrorEventData: a classified error
//
// # File Format
//
// Log files use CBOR encoding with the .clog extension. The cable-log
// CLI tool provides viewing, filtering, and summary statistics.
package log
