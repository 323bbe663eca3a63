package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/logger"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// logLevel picks the level for a command. While the TUI owns the screen
// only warnings are kept unless the user asked for more.
func logLevel(verbose, interactive bool) string {
	switch {
	case verbose:
		return "debug"
	case interactive:
		return "warn"
	default:
		return "info"
	}
}

// newLogger builds the logger selected by --log-format. Text output goes
// through charmbracelet/log, JSON through zerolog.
func newLogger(format, level string, w io.Writer) (ports.Logger, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", logFormatText:
		l, err := logging.New(logging.Options{Writer: w, Level: level, Layer: "cli"})
		if err != nil {
			return nil, err
		}
		return l, nil
	case logFormatJSON:
		l, err := logger.New(logger.Options{Writer: w, Level: level, Layer: "cli"})
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", format)
	}
}
