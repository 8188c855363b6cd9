// Package enginelog defines the logging interface every per-call component
// accepts at construction. Nothing in the engine's core imports a
// package-level logger: logging is the sole process-wide facility, and it is
// passed in, never reached into globally.
package enginelog

import (
	"context"
	"log/slog"
)

// Logger is the structured-logging interface accepted by every domain
// component (upstream client, jitter buffer, playback controller, pipeline
// orchestrator). Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// noop discards all log output. It is the default used wherever a caller
// declines to supply a Logger.
type noop struct{}

func (noop) Debug(string, ...any) {}
func (noop) Info(string, ...any)  {}
func (noop) Warn(string, ...any)  {}
func (noop) Error(string, ...any) {}

// Noop returns a Logger that discards everything.
func Noop() Logger { return noop{} }

// Slog adapts a *slog.Logger to the Logger interface.
type Slog struct {
	logger *slog.Logger
}

// NewSlog wraps an existing *slog.Logger. A nil logger falls back to slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (s *Slog) Debug(msg string, kv ...any) { s.logger.Debug(msg, kv...) }
func (s *Slog) Info(msg string, kv ...any)  { s.logger.Info(msg, kv...) }
func (s *Slog) Warn(msg string, kv ...any)  { s.logger.Warn(msg, kv...) }
func (s *Slog) Error(msg string, kv ...any) { s.logger.Error(msg, kv...) }

// With returns a Slog whose entries carry the given key-value attributes,
// scoping a logger to one call session (e.g. "session_id").
func (s *Slog) With(kv ...any) *Slog {
	return &Slog{logger: s.logger.With(kv...)}
}

// WithContext returns a Logger that attaches ctx to every emitted record,
// enabling slog handlers that extract trace/span IDs from context.
func (s *Slog) WithContext(ctx context.Context) Logger {
	return &ctxSlog{logger: s.logger, ctx: ctx}
}

type ctxSlog struct {
	logger *slog.Logger
	ctx    context.Context
}

func (c *ctxSlog) Debug(msg string, kv ...any) { c.logger.DebugContext(c.ctx, msg, kv...) }
func (c *ctxSlog) Info(msg string, kv ...any)  { c.logger.InfoContext(c.ctx, msg, kv...) }
func (c *ctxSlog) Warn(msg string, kv ...any)  { c.logger.WarnContext(c.ctx, msg, kv...) }
func (c *ctxSlog) Error(msg string, kv ...any) { c.logger.ErrorContext(c.ctx, msg, kv...) }
