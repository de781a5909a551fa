package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger. Production emits JSON, everything else text.
func New(production bool, level int) *slog.Logger {
	return newLogger(os.Stdout, production, level)
}

func newLogger(w io.Writer, production bool, level int) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.Level(level)}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
