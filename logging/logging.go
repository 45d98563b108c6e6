// Package logging provides line-oriented console logging for the sync channel.
// Each line reads LEVEL TIMESTAMP [component] message key=value ... and the
// event helpers below give every connection lifecycle event a stable name.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{
		output:   io.Discard,
		minLevel: LevelError,
	}
}

// ParseLevel converts a level name such as "debug" into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[level]; !ok {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger that appends trace_id to every line.
func (l *Logger) WithTraceID(traceID string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs sorted by key.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.traceID != "" {
		fieldStr += " trace_id=" + l.traceID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.output.Write([]byte(line))
}

// --- Connection lifecycle events ---

// StateChange logs a connection state transition.
func (l *Logger) StateChange(from, to string, epoch uint64) {
	l.Info("state_change", map[string]interface{}{
		"from":  from,
		"to":    to,
		"epoch": epoch,
	})
}

// ReconnectScheduled logs the delay before the next connection attempt.
func (l *Logger) ReconnectScheduled(attempt int, delay time.Duration) {
	l.Info("reconnect_scheduled", map[string]interface{}{
		"attempt": attempt,
		"delay":   delay.String(),
	})
}

// ReconnectExhausted logs that the retry budget is used up.
func (l *Logger) ReconnectExhausted(attempts int) {
	l.Error("reconnect_exhausted", map[string]interface{}{
		"attempts": attempts,
	})
}

// Connected logs a completed handshake.
func (l *Logger) Connected(url string, flushed, replayed int) {
	l.Info("connected", map[string]interface{}{
		"url":      url,
		"flushed":  flushed,
		"replayed": replayed,
	})
}

// ConnectionLost logs a transport close or failure.
func (l *Logger) ConnectionLost(code int, reason string, err error) {
	fields := map[string]interface{}{
		"code": code,
	}
	if reason != "" {
		fields["reason"] = reason
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("connection_lost", fields)
}

// FrameDropped logs an inbound frame that could not be processed.
func (l *Logger) FrameDropped(reason string, size int) {
	l.Warn("frame_dropped", map[string]interface{}{
		"reason": reason,
		"size":   size,
	})
}

// QueueEvicted logs an outbound message dropped on overflow.
func (l *Logger) QueueEvicted(id, msgType string, queued int) {
	l.Warn("queue_evicted", map[string]interface{}{
		"id":     id,
		"type":   msgType,
		"queued": queued,
	})
}

// HeartbeatTimeout logs a missed pong.
func (l *Logger) HeartbeatTimeout(pingID string, waited time.Duration) {
	l.Warn("heartbeat_timeout", map[string]interface{}{
		"ping_id": pingID,
		"waited":  waited.String(),
	})
}

// AuthFailed logs rejected credentials.
func (l *Logger) AuthFailed(reason string) {
	l.Error("auth_failed", map[string]interface{}{
		"reason": reason,
	})
}

// HandlerPanic logs a recovered panic in an inbound handler.
func (l *Logger) HandlerPanic(msgType string, recovered interface{}) {
	l.Error("handler_panic", map[string]interface{}{
		"type":  msgType,
		"panic": recovered,
	})
}
