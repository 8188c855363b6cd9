package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callbridge/streamcore/runtime/jitter"
)

func TestRecorder_SessionLifecycle(t *testing.T) {
	sessionsActive.Set(0)
	sessionsTotal.Reset()

	r := NewRecorder()
	r.SessionStarted()
	r.SessionStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(sessionsActive))

	r.SessionEnded("completed")
	assert.Equal(t, float64(1), testutil.ToFloat64(sessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(sessionsTotal.WithLabelValues("completed")))

	r.SessionEnded("failed")
	assert.Equal(t, float64(0), testutil.ToFloat64(sessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(sessionsTotal.WithLabelValues("failed")))
}

func TestRecorder_FrameCounters(t *testing.T) {
	before := testutil.ToFloat64(framesIngressedTotal)
	r := NewRecorder()

	r.FrameIngressed()
	r.FrameIngressed()
	r.FrameEgressed()
	r.FrameConcealed()

	assert.Equal(t, before+2, testutil.ToFloat64(framesIngressedTotal))
	assert.GreaterOrEqual(t, testutil.ToFloat64(framesEgressedTotal), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(framesConcealedTotal), float64(1))
}

func TestRecorder_BreathingAndPauseCounters(t *testing.T) {
	r := NewRecorder()
	beforeBreathing := testutil.ToFloat64(breathingInsertedTotal)
	beforePause := testutil.ToFloat64(pausesInsertedTotal)

	r.BreathingInserted()
	r.PauseInserted()

	assert.Equal(t, beforeBreathing+1, testutil.ToFloat64(breathingInsertedTotal))
	assert.Equal(t, beforePause+1, testutil.ToFloat64(pausesInsertedTotal))
}

func TestRecorder_ReconnectCounters(t *testing.T) {
	r := NewRecorder()
	beforeAttempts := testutil.ToFloat64(reconnectAttemptsTotal)
	beforeExhausted := testutil.ToFloat64(backoffExhaustedTotal)

	r.ReconnectAttempted()
	r.ReconnectAttempted()
	r.BackoffExhausted()

	assert.Equal(t, beforeAttempts+2, testutil.ToFloat64(reconnectAttemptsTotal))
	assert.Equal(t, beforeExhausted+1, testutil.ToFloat64(backoffExhaustedTotal))
}

func TestRecorder_ObserveJitter(t *testing.T) {
	r := NewRecorder()

	r.ObserveJitter(jitter.Stats{
		TargetDepthMs:  120,
		CurrentDepthMs: 95,
		JitterMs:       14.5,
		Underruns:      3,
		Overruns:       1,
	})

	assert.Equal(t, float64(120), testutil.ToFloat64(jitterTargetDepthMs))
	assert.Equal(t, float64(95), testutil.ToFloat64(jitterCurrentDepthMs))
	assert.Equal(t, 14.5, testutil.ToFloat64(jitterMeasuredMs))
	assert.Equal(t, float64(3), testutil.ToFloat64(jitterUnderruns))
	assert.Equal(t, float64(1), testutil.ToFloat64(jitterOverruns))

	// A later observation overwrites rather than accumulates, since the
	// jitter buffer already owns the running totals.
	r.ObserveJitter(jitter.Stats{Underruns: 5, Overruns: 2})
	assert.Equal(t, float64(5), testutil.ToFloat64(jitterUnderruns))
	assert.Equal(t, float64(2), testutil.ToFloat64(jitterOverruns))
}

func TestRecorder_ObservePlaybackRate(t *testing.T) {
	r := NewRecorder()

	r.ObservePlaybackRate(1.05)
	assert.Equal(t, 1.05, testutil.ToFloat64(playbackRate))

	r.ObservePlaybackRate(0.97)
	assert.Equal(t, 0.97, testutil.ToFloat64(playbackRate))
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":9091")
	require.NotNil(t, exporter)
	assert.NotNil(t, exporter.Registry())
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9092", reg)

	assert.Same(t, reg, exporter.Registry())
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	exporter := NewExporterWithRegistry(":9093", reg)
	handler := exporter.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "test_counter"))
}

func TestExporterRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9094", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_counter",
		Help: "Custom counter",
	})

	require.NoError(t, exporter.Register(counter))

	// Registering again should fail.
	assert.Error(t, exporter.Register(counter))
}

func TestExporterMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9095", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "must_register_counter",
		Help: "Must register counter",
	})

	assert.NotPanics(t, func() {
		exporter.MustRegister(counter)
	})
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	errCh := make(chan error, 1)
	go func() {
		errCh <- exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, exporter.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.Equal(t, http.ErrServerClosed, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	go func() {
		_ = exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	// Second start should return nil immediately.
	assert.NoError(t, exporter.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
