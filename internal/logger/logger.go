// Package logger carries a request id through context so every log line of a
// search can be correlated.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "requestId"

// slowThreshold marks tracked operations that deserve a warning
const slowThreshold = 3 * time.Second

// Setup installs a text handler on stderr at the given level as the default logger
func Setup(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// For returns the default logger annotated with the request id stored in ctx, if any
func For(ctx context.Context) *slog.Logger {
	id, ok := ctx.Value(RequestIDKey).(string)
	if !ok || id == "" {
		return slog.Default()
	}
	return slog.Default().With("request_id", id)
}

func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Track logs the duration of an operation when the returned func is called
func Track(ctx context.Context, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		dur := time.Since(start)
		l := For(ctx).With(args...).With("duration", dur.String())
		if dur > slowThreshold {
			l.Warn(msg + " completed (slow)")
			return
		}
		l.Info(msg + " completed")
	}
}
