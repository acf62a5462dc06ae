package logging

import (
	"context"
	"log/slog"
	"time"
)

// Track starts a timer for name and returns a func that logs the elapsed
// duration at level when called. Typical use:
//
//	defer logging.Track(logger, slog.LevelDebug, "sweep")()
func Track(logger *slog.Logger, level slog.Level, name string, attrs ...any) func() {
	if logger == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		args := append([]any{slog.Duration("duration", time.Since(start))}, attrs...)
		logger.Log(context.Background(), level, name+" took", args...)
	}
}

// Timed runs fn and logs how long it took at debug level, whether or not it failed.
func Timed[T any](logger *slog.Logger, name string, fn func() (T, error)) (T, error) {
	done := Track(logger, slog.LevelDebug, name)
	defer done()
	return fn()
}
