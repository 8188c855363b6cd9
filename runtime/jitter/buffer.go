// Package jitter implements an order-preserving, sequence-keyed jitter
// buffer whose target depth adapts to measured inter-arrival jitter.
package jitter

import (
	"math"
	"sort"
	"sync"
	"time"
)

// deltaWindowSize bounds how many inter-arrival deltas feed the jitter
// (standard deviation) calculation.
const deltaWindowSize = 50

// nominalFrameDurationMs is the fallback frame duration used to translate a
// frame count into a millisecond depth estimate when a frame carries no
// explicit duration. Sessions whose upstream produces a different
// granularity pass each frame's real duration instead.
const nominalFrameDurationMs = 20

// defaultAdaptationIntervalMs bounds how often target depth is recomputed.
const defaultAdaptationIntervalMs = 100

// seenSetCapacity bounds how many trailing sequence numbers the duplicate
// detection set retains, so it stays bounded by call duration rather than
// growing for the life of a session (mirrors sequencer.seenSetCapacity).
const seenSetCapacity = 1000

// targetDepthMultiplier scales measured jitter into additional buffer depth.
const targetDepthMultiplier = 2.0

// Frame is one entry in the buffer: a sequence number, its native duration
// in milliseconds (for exact depth accounting), and an opaque payload.
type Frame struct {
	Sequence   uint64
	DurationMs float64
	Payload    []byte
}

// Stats is the window of inter-arrival statistics and running counters
// described in the buffer's data model. The counters update on every
// Enqueue and Dequeue; MeanGapMs and JitterMs are recomputed only when an
// adaptation runs, at most once per adaptation interval.
type Stats struct {
	MeanGapMs float64
	JitterMs  float64
	Total     uint64
	OutOfOrder uint64
	Duplicate  uint64
	Lost       uint64
	Underruns  uint64
	Overruns   uint64
	TargetDepthMs float64
	CurrentDepthMs float64
}

// Config bounds and seeds the adaptive target depth.
type Config struct {
	MinMs                int
	MaxMs                int
	TargetMs             int
	AdaptationIntervalMs int
}

// Buffer is an order-preserving FIFO keyed by sequence number, whose target
// depth adapts to measured inter-arrival jitter. It is safe for concurrent
// use by one writer (enqueue) and one reader (dequeue), matching the
// single-producer/single-consumer contract between the upstream-receive
// task and the playback task.
type Buffer struct {
	mu sync.Mutex

	minMs, maxMs int
	targetMs     float64
	adaptMs      int

	frames map[uint64]Frame
	seen   map[uint64]struct{}

	lastArrival    time.Time
	haveLastArrive bool
	deltas         []float64

	lastAdapt time.Time

	highestSeen    uint64
	haveHighestSeen bool

	stats Stats
}

// New constructs a Buffer from cfg, clamping an out-of-range initial target
// into [min_ms, max_ms].
func New(cfg Config) *Buffer {
	target := float64(cfg.TargetMs)
	if target < float64(cfg.MinMs) {
		target = float64(cfg.MinMs)
	}
	if target > float64(cfg.MaxMs) {
		target = float64(cfg.MaxMs)
	}
	adapt := cfg.AdaptationIntervalMs
	if adapt <= 0 {
		adapt = defaultAdaptationIntervalMs
	}
	return &Buffer{
		minMs:   cfg.MinMs,
		maxMs:   cfg.MaxMs,
		targetMs: target,
		adaptMs: adapt,
		frames:  make(map[uint64]Frame),
		seen:    make(map[uint64]struct{}),
	}
}

// Enqueue inserts frame, ordered by sequence rather than arrival order, and
// never blocks. It records the arrival time for jitter estimation, evicts
// the oldest frames if the buffer now exceeds max_ms of depth, and tracks
// duplicate/out-of-order counters. now is the wall-clock arrival instant;
// callers pass it explicitly so the buffer's adaptation math stays testable
// without a live clock.
func (b *Buffer) Enqueue(frame Frame, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Total++

	if _, dup := b.seen[frame.Sequence]; dup {
		b.stats.Duplicate++
		return
	}
	b.markSeen(frame.Sequence)

	if b.haveHighestSeen && frame.Sequence < b.highestSeen {
		b.stats.OutOfOrder++
	}
	if !b.haveHighestSeen || frame.Sequence > b.highestSeen {
		b.highestSeen = frame.Sequence
		b.haveHighestSeen = true
	}

	if _, exists := b.frames[frame.Sequence]; !exists {
		b.frames[frame.Sequence] = frame
	}

	if b.haveLastArrive {
		delta := now.Sub(b.lastArrival).Seconds() * 1000
		b.deltas = append(b.deltas, delta)
		if len(b.deltas) > deltaWindowSize {
			b.deltas = b.deltas[len(b.deltas)-deltaWindowSize:]
		}
	}
	b.lastArrival = now
	b.haveLastArrive = true

	if b.lastAdapt.IsZero() || now.Sub(b.lastAdapt) >= time.Duration(b.adaptMs)*time.Millisecond {
		b.adapt()
		b.lastAdapt = now
	}

	b.evictOverflow()
}

// markSeen records seq and, once the set exceeds seenSetCapacity, evicts
// every entry more than seenSetCapacity below seq so the seen-set stays
// bounded regardless of call duration.
func (b *Buffer) markSeen(seq uint64) {
	b.seen[seq] = struct{}{}
	if len(b.seen) <= seenSetCapacity {
		return
	}
	var floor uint64
	if seq > seenSetCapacity {
		floor = seq - seenSetCapacity
	}
	for old := range b.seen {
		if old < floor {
			delete(b.seen, old)
		}
	}
}

// adapt recomputes mean gap and jitter from the delta window and sets the
// target depth to clamp(min_ms, min_ms + multiplier*jitter, max_ms).
func (b *Buffer) adapt() {
	if len(b.deltas) == 0 {
		return
	}
	var sum float64
	for _, d := range b.deltas {
		sum += d
	}
	mean := sum / float64(len(b.deltas))

	var sumSq float64
	for _, d := range b.deltas {
		sumSq += (d - mean) * (d - mean)
	}
	jitter := math.Sqrt(sumSq / float64(len(b.deltas)))

	b.stats.MeanGapMs = mean
	b.stats.JitterMs = jitter

	target := float64(b.minMs) + targetDepthMultiplier*jitter
	if target < float64(b.minMs) {
		target = float64(b.minMs)
	}
	if target > float64(b.maxMs) {
		target = float64(b.maxMs)
	}
	b.targetMs = target
}

// currentDepthMs approximates the buffer's depth in milliseconds using each
// frame's own duration where known, falling back to the nominal 20 ms
// assumption for frames that carry no duration.
func (b *Buffer) currentDepthMs() float64 {
	var depth float64
	for _, f := range b.frames {
		if f.DurationMs > 0 {
			depth += f.DurationMs
		} else {
			depth += nominalFrameDurationMs
		}
	}
	return depth
}

// evictOverflow drops the oldest (lowest-sequence) frames until depth is at
// or below max_ms, incrementing the overrun counter once per eviction.
func (b *Buffer) evictOverflow() {
	for b.currentDepthMs() > float64(b.maxMs) && len(b.frames) > 0 {
		oldest := b.lowestSequence()
		delete(b.frames, oldest)
		b.stats.Overruns++
		b.stats.Lost++
	}
}

func (b *Buffer) lowestSequence() uint64 {
	seqs := make([]uint64, 0, len(b.frames))
	for s := range b.frames {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs[0]
}

// Dequeue returns the lowest-sequence frame if current depth meets target
// depth, otherwise a zero Frame and false, and records an underrun.
func (b *Buffer) Dequeue() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.CurrentDepthMs = b.currentDepthMs()
	b.stats.TargetDepthMs = b.targetMs

	if len(b.frames) == 0 || b.stats.CurrentDepthMs < b.targetMs {
		b.stats.Underruns++
		return Frame{}, false
	}

	seq := b.lowestSequence()
	frame := b.frames[seq]
	delete(b.frames, seq)
	return frame, true
}

// Stats returns a snapshot of the current window statistics.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.CurrentDepthMs = b.currentDepthMs()
	b.stats.TargetDepthMs = b.targetMs
	return b.stats
}

// TargetDepthMs returns the current adaptive target depth in milliseconds.
func (b *Buffer) TargetDepthMs() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetMs
}
