// Package logging provides the structured debug log for pipeline runs.
// User-facing console output stays on stdout; everything the operator may
// need after the fact goes to runs/<id>/debug.log as JSON lines.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const debugLogFileName = "debug.log"

// Logger wraps slog with run-scoped context helpers.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a logger writing JSON lines to debug.log inside the run
// directory.
func New(runDir, level string) (*Logger, error) {
	path := filepath.Join(runDir, debugLogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{Logger: slog.New(handler), file: f}, nil
}

// Nop returns a logger that discards everything. Used in tests and in code
// paths that run before a run directory exists.
func Nop() *Logger {
	handler := slog.NewJSONHandler(io.Discard, nil)
	return &Logger{Logger: slog.New(handler)}
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// WithComponent returns a child logger tagged with a pipeline component
// name ("executor", "supervisor", "review", ...).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name), file: l.file}
}

// WithStory returns a child logger tagged with a story key.
func (l *Logger) WithStory(key string) *Logger {
	return &Logger{Logger: l.Logger.With("story", key), file: l.file}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
