package enginelog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop_DiscardsEverything(t *testing.T) {
	l := Noop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", "v")
		l.Warn("x")
		l.Error("x")
	})
}

func TestNewSlog_NilFallsBackToDefault(t *testing.T) {
	s := NewSlog(nil)
	assert.NotNil(t, s)
}

func TestSlog_EmitsStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	s := NewSlog(slog.New(handler))

	s.Info("connected", "session_id", "abc")

	out := buf.String()
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "session_id=abc")
}

func TestSlog_With_ScopesAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	s := NewSlog(slog.New(handler)).With("session_id", "abc")

	s.Warn("gap detected")

	assert.True(t, strings.Contains(buf.String(), "session_id=abc"))
}

func TestSlog_WithContext_AttachesContextToRecord(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	s := NewSlog(slog.New(handler))

	ctxLogger := s.WithContext(context.Background())
	assert.NotPanics(t, func() {
		ctxLogger.Debug("tick")
		ctxLogger.Info("tick")
		ctxLogger.Warn("tick")
		ctxLogger.Error("tick")
	})
	assert.Contains(t, buf.String(), "tick")
}
