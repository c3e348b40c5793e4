package commands

import (
	"fmt"
	"io"

	"github.com/cable-protocol/cable-go/pkg/log"
)

// RunFilter copies the events matching filter into a new log file at
// outPath and reports the count to w. The output file is a regular
// .clog file, readable by every other subcommand.
func RunFilter(path, outPath string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output log: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, outPath)
	return nil
}
