// Package playback drives the per-call output tick: rate adaptation against
// buffer level, crossfading between adjacent frames, and fade-to-silence
// concealment of detected gaps.
package playback

import (
	"encoding/binary"
	"sync"
)

// State is the controller's lifecycle state.
type State string

const (
	Stopped   State = "stopped"
	Playing   State = "playing"
	Paused    State = "paused"
	Buffering State = "buffering"
)

const (
	baseRate        = 1.0
	rateStep        = 0.02
	defaultMinRate  = 0.95
	defaultMaxRate  = 1.05
	defaultLowWater = 0.2
	defaultHighWater = 0.8
)

// Config bounds the controller's rate adaptation and crossfade window.
type Config struct {
	MinRate      float64
	MaxRate      float64
	LowWatermark float64
	HighWatermark float64
	CrossfadeMs  int
	// SampleRate is the PCM16 sample rate of frames passed to Emit and
	// Conceal, used to convert CrossfadeMs into a sample count.
	SampleRate int
}

func (c Config) withDefaults() Config {
	if c.MinRate == 0 {
		c.MinRate = defaultMinRate
	}
	if c.MaxRate == 0 {
		c.MaxRate = defaultMaxRate
	}
	if c.LowWatermark == 0 {
		c.LowWatermark = defaultLowWater
	}
	if c.HighWatermark == 0 {
		c.HighWatermark = defaultHighWater
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	return c
}

// Controller drives playback pacing: it tracks buffer level and derives the
// tick-period-scaling rate from it, and provides pure crossfade/conceal
// helpers for splicing frames.
type Controller struct {
	mu sync.Mutex

	cfg   Config
	state State
	rate  float64

	// pending holds a frame withheld from emission so a future crossfade
	// can splice into its tail before it is actually sent to the sink.
	// This is the one-frame-latency pre-emission splice: the previous
	// frame is never handed to the sink until the next frame is known.
	pending []byte
}

// New constructs a Controller in the Stopped state at the base rate.
func New(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{cfg: cfg, state: Stopped, rate: baseRate}
}

func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Playing
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing || c.state == Buffering {
		c.state = Paused
	}
}

func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Paused {
		c.state = Playing
	}
}

func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Stopped
	c.pending = nil
	c.rate = baseRate
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentRate reports the controller's current effective playback rate.
func (c *Controller) CurrentRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// UpdateBufferLevel recomputes the effective rate from a normalized buffer
// level in [0,1]; it is called after every enqueue and dequeue on the
// jitter buffer.
func (c *Controller) UpdateBufferLevel(level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var target float64
	switch {
	case level < c.cfg.LowWatermark:
		target = baseRate - rateStep
		if c.state == Playing {
			c.state = Buffering
		}
	case level > c.cfg.HighWatermark:
		target = baseRate + rateStep
		if c.state == Buffering {
			c.state = Playing
		}
	default:
		target = baseRate
		if c.state == Buffering {
			c.state = Playing
		}
	}

	if target < c.cfg.MinRate {
		target = c.cfg.MinRate
	}
	if target > c.cfg.MaxRate {
		target = c.cfg.MaxRate
	}
	c.rate = target
}

// crossfadeSamples converts the configured crossfade window into a PCM16
// sample count for the controller's configured sample rate.
func (c *Controller) crossfadeSamples() int {
	if c.cfg.CrossfadeMs <= 0 {
		return 0
	}
	return c.cfg.CrossfadeMs * c.cfg.SampleRate / 1000
}

// Conceal takes the last available sample of last and emits a fade-to-
// silence buffer spanning durationMs at sampleRate, with no pitch synthesis.
func Conceal(last []byte, durationMs, sampleRate int) []byte {
	numSamples := durationMs * sampleRate / 1000
	out := make([]byte, numSamples*2)
	if len(last) < 2 || numSamples == 0 {
		return out
	}
	lastSample := int16(binary.LittleEndian.Uint16(last[len(last)-2:]))
	for i := 0; i < numSamples; i++ {
		gain := 1.0 - float64(i)/float64(numSamples)
		v := int16(float64(lastSample) * gain)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Emit implements the one-frame-latency pre-emission splice: a frame is
// never sent to the sink the moment it is produced. Instead it is held as
// pending until the next frame arrives, at which point the held frame,
// crossfaded against the new frame's head, is returned for emission and
// the new frame becomes the next one held. The first call after Start
// returns nil (nothing to emit yet); call Flush at stream end to emit
// whatever frame is still withheld, unspliced.
func (c *Controller) Emit(frame []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.pending
	c.pending = frame
	if prev == nil {
		return nil
	}
	if c.cfg.CrossfadeMs <= 0 {
		return prev
	}
	return crossfadeHead(prev, frame, c.cfg.SampleRate, c.cfg.CrossfadeMs)
}

// crossfadeHead is the controller's one linear equal-gain ramp
// implementation: it returns prev with its tail blended against the
// head of next across the crossfade window, without consuming any of next
// itself (next is only previewed, since it will be emitted whole on the
// following call). If prev is shorter than the ramp, it is returned
// unchanged.
func crossfadeHead(prev, next []byte, sampleRate, crossfadeMs int) []byte {
	rampSamples := crossfadeMs * sampleRate / 1000
	prevSamples := len(prev) / 2
	nextSamples := len(next) / 2
	if rampSamples <= 0 || prevSamples < rampSamples || nextSamples < rampSamples {
		return prev
	}

	out := make([]byte, len(prev))
	copy(out, prev[:len(prev)-rampSamples*2])

	tailOff := len(prev) - rampSamples*2
	for i := 0; i < rampSamples; i++ {
		gain := float64(i) / float64(rampSamples)
		pv := int16(binary.LittleEndian.Uint16(prev[tailOff+i*2:]))
		nv := int16(binary.LittleEndian.Uint16(next[i*2:]))
		mixed := float64(pv)*(1-gain) + float64(nv)*gain
		binary.LittleEndian.PutUint16(out[tailOff+i*2:], uint16(int16(mixed)))
	}
	return out
}

// Flush returns any frame still withheld by Emit's pre-emission splice, for
// use at stream end when no further frame will arrive to splice against.
func (c *Controller) Flush() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}
