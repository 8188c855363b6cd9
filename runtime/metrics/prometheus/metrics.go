// Package prometheus provides Prometheus metrics exporters for the
// streaming engine: per-call jitter/playback/reconnect/augmentation
// counters plus the Go runtime collectors every process exposes.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamcore"

var (
	// sessionsActive is a gauge of currently in-progress call sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently in-progress call sessions",
		},
	)

	// sessionsTotal is a counter of sessions reaching a terminal status.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of call sessions reaching a terminal status",
		},
		[]string{"status"}, // completed, failed
	)

	// framesIngressedTotal is a counter of carrier frames forwarded upstream.
	framesIngressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_ingressed_total",
			Help:      "Total number of carrier frames forwarded upstream",
		},
	)

	// framesEgressedTotal is a counter of frames emitted to the carrier.
	framesEgressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_egressed_total",
			Help:      "Total number of frames emitted to the carrier",
		},
	)

	// framesConcealedTotal is a counter of playback ticks that emitted
	// fade-to-silence concealment instead of a dequeued frame.
	framesConcealedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_concealed_total",
			Help:      "Total number of playback ticks that emitted concealment silence",
		},
	)

	// breathingInsertedTotal is a counter of synthesized breathing bursts spliced in.
	breathingInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breathing_inserted_total",
			Help:      "Total number of synthesized breathing bursts spliced into egress audio",
		},
	)

	// pausesInsertedTotal is a counter of synthesized pauses spliced in.
	pausesInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_inserted_total",
			Help:      "Total number of synthesized pauses spliced into egress audio",
		},
	)

	// reconnectAttemptsTotal is a counter of upstream reconnect attempts.
	reconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_reconnect_attempts_total",
			Help:      "Total number of upstream reconnect attempts",
		},
	)

	// backoffExhaustedTotal counts sessions whose reconnect ceiling was reached.
	backoffExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_backoff_exhausted_total",
			Help:      "Total number of times the upstream reconnect attempt ceiling was reached",
		},
	)

	// jitterTargetDepthMs is a gauge of the adaptive jitter buffer's current target depth.
	jitterTargetDepthMs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_target_depth_ms",
			Help:      "Current adaptive jitter buffer target depth in milliseconds",
		},
	)

	// jitterCurrentDepthMs is a gauge of the jitter buffer's measured current depth.
	jitterCurrentDepthMs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_current_depth_ms",
			Help:      "Current measured jitter buffer depth in milliseconds",
		},
	)

	// jitterMeasuredMs is a gauge of the jitter buffer's standard-deviation jitter estimate.
	jitterMeasuredMs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_measured_ms",
			Help:      "Standard deviation of inter-arrival gaps over the last window",
		},
	)

	// jitterUnderruns and jitterOverruns mirror the jitter buffer's own
	// running counters (gauges, not counters: the buffer already tracks
	// the cumulative total itself, so each observation sets rather than
	// increments).
	jitterUnderruns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_underruns",
			Help:      "Cumulative number of jitter buffer dequeue attempts below target depth",
		},
	)
	jitterOverruns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jitter_overruns",
			Help:      "Cumulative number of jitter buffer evictions due to overflow",
		},
	)

	// playbackRate is a gauge of the playback controller's current effective rate.
	playbackRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_rate",
			Help:      "Current effective playback rate (1.0 = nominal)",
		},
	)

	// allMetrics is the list of collectors registered with every exporter.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		framesIngressedTotal,
		framesEgressedTotal,
		framesConcealedTotal,
		breathingInsertedTotal,
		pausesInsertedTotal,
		reconnectAttemptsTotal,
		backoffExhaustedTotal,
		jitterTargetDepthMs,
		jitterCurrentDepthMs,
		jitterMeasuredMs,
		jitterUnderruns,
		jitterOverruns,
		playbackRate,
	}
)
