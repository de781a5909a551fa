package testutil

import (
	"io"
	"log/slog"
)

// SilenceDefaultLogger routes the default slog logger to io.Discard until the
// returned func is called.
func SilenceDefaultLogger() func() {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))
	return func() { slog.SetDefault(prev) }
}
