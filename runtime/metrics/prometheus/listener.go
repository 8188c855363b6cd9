package prometheus

import "github.com/callbridge/streamcore/runtime/jitter"

// Recorder exposes direct-call methods for the engine to record metrics as
// events occur, in place of the teacher's pub/sub event-bus listener: the
// engine's own event surface (runtime/pipeline) already resolved to typed
// channels and direct calls rather than an in-process bus, so its metrics
// sink follows the same shape.
type Recorder struct{}

// NewRecorder constructs a Recorder. It carries no state of its own; every
// metric it touches is a package-level Prometheus collector registered by
// NewExporter.
func NewRecorder() *Recorder { return &Recorder{} }

// SessionStarted records one more active session.
func (r *Recorder) SessionStarted() {
	sessionsActive.Inc()
}

// SessionEnded records a session reaching a terminal status.
func (r *Recorder) SessionEnded(status string) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(status).Inc()
}

// FrameIngressed records one carrier frame forwarded upstream.
func (r *Recorder) FrameIngressed() {
	framesIngressedTotal.Inc()
}

// FrameEgressed records one frame emitted to the carrier.
func (r *Recorder) FrameEgressed() {
	framesEgressedTotal.Inc()
}

// FrameConcealed records one playback tick that emitted concealment
// silence instead of a dequeued frame.
func (r *Recorder) FrameConcealed() {
	framesConcealedTotal.Inc()
}

// BreathingInserted records one synthesized breathing burst spliced in.
func (r *Recorder) BreathingInserted() {
	breathingInsertedTotal.Inc()
}

// PauseInserted records one synthesized pause spliced in.
func (r *Recorder) PauseInserted() {
	pausesInsertedTotal.Inc()
}

// ReconnectAttempted records one upstream reconnect attempt.
func (r *Recorder) ReconnectAttempted() {
	reconnectAttemptsTotal.Inc()
}

// BackoffExhausted records the reconnect attempt ceiling being reached.
func (r *Recorder) BackoffExhausted() {
	backoffExhaustedTotal.Inc()
}

// ObserveJitter snapshots the jitter buffer's window statistics.
func (r *Recorder) ObserveJitter(stats jitter.Stats) {
	jitterTargetDepthMs.Set(stats.TargetDepthMs)
	jitterCurrentDepthMs.Set(stats.CurrentDepthMs)
	jitterMeasuredMs.Set(stats.JitterMs)
	jitterUnderruns.Set(float64(stats.Underruns))
	jitterOverruns.Set(float64(stats.Overruns))
}

// ObservePlaybackRate snapshots the playback controller's current rate.
func (r *Recorder) ObservePlaybackRate(rate float64) {
	playbackRate.Set(rate)
}
