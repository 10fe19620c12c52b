package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to JSON on stdout at the given level
// and returns it.
func SetupJSON(level slog.Level) *slog.Logger {
	logger := New(os.Stdout, level)
	slog.SetDefault(logger)

	return logger
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	)
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
