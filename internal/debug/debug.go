// Package debug carries the debug flag through context and wires slog.
package debug

import (
	"context"
	"log/slog"
	"os"
)

type debugKey struct{}

// WithDebug stores the debug flag in the context.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey{}, enabled)
}

// IsEnabled reports whether debug mode is set on the context.
func IsEnabled(ctx context.Context) bool {
	enabled, _ := ctx.Value(debugKey{}).(bool)
	return enabled
}

// SetupLogger installs the default slog logger. Debug mode lowers the level
// to Debug; otherwise only warnings and errors reach stderr.
func SetupLogger(debugEnabled bool) {
	level := slog.LevelWarn
	if debugEnabled {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
