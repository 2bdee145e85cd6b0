package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New constructs a text logger writing to stdout with the desired log level.
func New(service string) *slog.Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter is New with an explicit destination. Command-line tools pass
// os.Stderr so their stdout stays reserved for command output.
func NewWithWriter(service string, w io.Writer) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
