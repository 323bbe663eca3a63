// Package logger implements ports.Logger over zerolog for machine-readable
// (JSON) output.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level         string
	HumanReadable bool
	Writer        io.Writer
	Layer         string
	Component     string
}

// Logger wraps zerolog behind the shared logging contract.
type Logger struct {
	base zerolog.Logger
}

var _ ports.Logger = (*Logger)(nil)

// New creates a configured Logger instance based on Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var output io.Writer = writer
	if opts.HumanReadable {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		output = console
	}

	layer := opts.Layer
	if layer == "" {
		layer = "cli"
	}
	ctx := zerolog.New(output).Level(level).With().Timestamp().Str("layer", layer)
	if opts.Component != "" {
		ctx = ctx.Str("component", opts.Component)
	}
	return &Logger{base: ctx.Logger()}, nil
}

// Debug writes a debug-level log entry if enabled.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, zerolog.DebugLevel, msg, fields)
}

// Info writes an informational log entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, zerolog.InfoLevel, msg, fields)
}

// Warn writes a warning level log entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, zerolog.WarnLevel, msg, fields)
}

// Error writes an error log entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, zerolog.ErrorLevel, msg, fields)
}

// With returns a derived logger that always writes the supplied fields.
func (l *Logger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return logging.NewNoOpLogger()
	}
	builder := l.base.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		builder = builder.Interface(key, normalize(logging.Redact(key, fields[i+1])))
	}
	return &Logger{base: builder.Logger()}
}

func (l *Logger) emit(ctx context.Context, level zerolog.Level, msg string, fields []interface{}) {
	if l == nil {
		return
	}
	event := l.base.WithLevel(level)
	if !event.Enabled() {
		return
	}
	if id := ports.GetCorrelationID(ctx); id != "" {
		event = event.Str("correlation_id", id)
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := logging.Redact(key, fields[i+1])
		if err, isErr := value.(error); isErr {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, normalize(value))
	}
	event.Msg(msg)
}

// normalize renders durations and stringers the way the text logger does.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}
