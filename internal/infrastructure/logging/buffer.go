package logging

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

const defaultBufferLimit = 1000

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

type bufferedEntry struct {
	ctx    context.Context
	level  logLevel
	msg    string
	fields []interface{}
}

// Buffer holds log entries while the terminal UI owns the screen, so they
// can be replayed once it exits. The oldest entries are dropped past the
// limit.
type Buffer struct {
	mu      sync.Mutex
	limit   int
	entries []bufferedEntry
	dropped int
}

// NewBuffer creates a buffer with the provided capacity (defaults to 1000).
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = defaultBufferLimit
	}
	return &Buffer{limit: limit}
}

// Logger returns a ports.Logger writing into the buffer.
func (b *Buffer) Logger() ports.Logger {
	return &bufferedLogger{buffer: b}
}

// Len returns the number of held entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) add(entry bufferedEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == b.limit {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
		b.dropped++
		return
	}
	b.entries = append(b.entries, entry)
}

// Flush replays held entries through delegate in order and empties the
// buffer. A warning is logged first when entries were dropped.
func (b *Buffer) Flush(delegate ports.Logger) {
	if delegate == nil {
		return
	}
	b.mu.Lock()
	entries := b.entries
	dropped := b.dropped
	b.entries = nil
	b.dropped = 0
	b.mu.Unlock()

	if dropped > 0 {
		delegate.Warn(context.Background(), "log buffer overflowed", "dropped", dropped)
	}
	for _, entry := range entries {
		switch entry.level {
		case levelDebug:
			delegate.Debug(entry.ctx, entry.msg, entry.fields...)
		case levelWarn:
			delegate.Warn(entry.ctx, entry.msg, entry.fields...)
		case levelError:
			delegate.Error(entry.ctx, entry.msg, entry.fields...)
		default:
			delegate.Info(entry.ctx, entry.msg, entry.fields...)
		}
	}
}

type bufferedLogger struct {
	buffer *Buffer
	fields []interface{}
}

func (l *bufferedLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, levelDebug, msg, fields...)
}

func (l *bufferedLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, levelInfo, msg, fields...)
}

func (l *bufferedLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, levelWarn, msg, fields...)
}

func (l *bufferedLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, levelError, msg, fields...)
}

func (l *bufferedLogger) With(fields ...interface{}) ports.Logger {
	next := append(append([]interface{}{}, l.fields...), fields...)
	return &bufferedLogger{buffer: l.buffer, fields: next}
}

func (l *bufferedLogger) log(ctx context.Context, level logLevel, msg string, fields ...interface{}) {
	if l == nil || l.buffer == nil {
		return
	}
	payload := append(append([]interface{}{}, l.fields...), fields...)
	l.buffer.add(bufferedEntry{ctx: ctx, level: level, msg: msg, fields: payload})
}
