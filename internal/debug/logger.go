// Package debug provides the planner's debug logging facility using
// log/slog. Every planning stage (simplify, lower, index selection,
// materialization, write planning) logs through this package rather than
// taking a logger dependency directly, so a caller that never calls Init
// pays no logging cost beyond a discarded slog record.
package debug

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger  *slog.Logger
	enabled bool
	mu      sync.RWMutex
)

func init() {
	Init(false)
}

// Init configures the package logger. When enable is true, debug records are
// written to os.Stderr as text; when false, a logger at a level above Error
// silently discards everything, so call sites never need an Enabled() guard
// around a log call to avoid argument-evaluation cost on a hot planning path.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable

	level := slog.LevelError + 1
	if enable {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
}

// Enabled reports whether debug logging is currently turned on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func Debug(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Error(msg, args...)
}

// With returns a logger scoped to a planning stage, e.g.
// debug.With("stage", "index-select", "model", modelName).
func With(args ...any) *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.With(args...)
}

// Logger returns the underlying slog.Logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
