// Package breathing synthesizes short respiration noise bursts at natural
// sentence and pause boundaries, and decides when to insert them.
package breathing

import (
	"encoding/binary"
	"math"
)

// Type identifies a breath burst's envelope/amplitude/frequency profile.
type Type string

const (
	Normal Type = "normal"
	Deep   Type = "deep"
	Quick  Type = "quick"
	Sigh   Type = "sigh"
)

const (
	defaultMinMs     = 100
	defaultMaxMs     = 300
	defaultNormalMs  = 200
	baseIntensity    = 0.3

	sentenceLongWords = 15
	sentenceDeepWords = 25
)

type profile struct {
	durationMs         int
	intensityMultiplier float64
	frequencyHz        float64
}

func profileFor(t Type, minMs, maxMs int) profile {
	switch t {
	case Deep:
		return profile{durationMs: maxMs, intensityMultiplier: 1.5, frequencyHz: 50}
	case Quick:
		return profile{durationMs: minMs, intensityMultiplier: 0.7, frequencyHz: 150}
	case Sigh:
		return profile{durationMs: int(float64(maxMs) * 1.5), intensityMultiplier: 1.2, frequencyHz: 80}
	default:
		return profile{durationMs: defaultNormalMs, intensityMultiplier: 1.0, frequencyHz: 100}
	}
}

// Config bounds burst duration and the base intensity they're scaled from.
type Config struct {
	Enabled   bool
	Intensity float64
	MinMs     int
	MaxMs     int
	// rngFunc supplies band-limited noise samples in [-1,1]; defaults to a
	// deterministic pseudo-random source so tests are reproducible without
	// needing to seed anything explicit themselves.
	rngFunc func(i int) float64
}

func (c Config) withDefaults() Config {
	if c.Intensity == 0 {
		c.Intensity = baseIntensity
	}
	if c.MinMs == 0 {
		c.MinMs = defaultMinMs
	}
	if c.MaxMs == 0 {
		c.MaxMs = defaultMaxMs
	}
	if c.rngFunc == nil {
		c.rngFunc = deterministicNoise
	}
	return c
}

// deterministicNoise is a cheap non-periodic pseudo-random generator so
// burst output is reproducible across runs without a shared RNG state.
func deterministicNoise(i int) float64 {
	x := math.Sin(float64(i) * 12.9898)
	frac := x - math.Floor(x)
	return frac*2 - 1
}

// Generator synthesizes respiration bursts and decides when to insert them.
type Generator struct {
	cfg        Config
	sampleRate int
}

// New constructs a Generator producing linear PCM16 bursts at sampleRate
// (16kHz when sampleRate is zero).
func New(cfg Config, sampleRate int) *Generator {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &Generator{cfg: cfg.withDefaults(), sampleRate: sampleRate}
}

// Generate returns a 16kHz linear PCM buffer of a respiration burst of the
// given type. An explicit durationMs overrides the type's default duration.
func (g *Generator) Generate(t Type, durationMs *int) []byte {
	p := profileFor(t, g.cfg.MinMs, g.cfg.MaxMs)
	duration := p.durationMs
	if durationMs != nil {
		duration = *durationMs
	}
	if duration < g.cfg.MinMs {
		duration = g.cfg.MinMs
	}
	if duration > int(float64(g.cfg.MaxMs)*1.5) {
		duration = int(float64(g.cfg.MaxMs) * 1.5)
	}

	numSamples := duration * g.sampleRate / 1000
	out := make([]byte, numSamples*2)
	intensity := g.cfg.Intensity * p.intensityMultiplier

	fadeIn := numSamples / 5   // 20%
	fadeOut := numSamples / 5  // 20%
	hold := numSamples - fadeIn - fadeOut

	for i := 0; i < numSamples; i++ {
		envelope := trapezoidalEnvelope(i, fadeIn, hold, fadeOut)
		noise := g.cfg.rngFunc(i)
		tonePhase := 2 * math.Pi * p.frequencyHz * float64(i) / float64(g.sampleRate)
		tone := math.Sin(tonePhase) * 0.1 // very low-amplitude tonal component
		sampleF := (noise + tone) * envelope * intensity * 32767
		sample := clampToInt16(sampleF)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample)) //nolint:gosec // PCM16 encode
	}
	return out
}

func trapezoidalEnvelope(i, fadeIn, hold, fadeOut int) float64 {
	switch {
	case i < fadeIn:
		if fadeIn == 0 {
			return 1
		}
		return float64(i) / float64(fadeIn)
	case i < fadeIn+hold:
		return 1
	default:
		tailIdx := i - fadeIn - hold
		if fadeOut == 0 {
			return 0
		}
		return 1 - float64(tailIdx)/float64(fadeOut)
	}
}

func clampToInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Decision is the outcome of ShouldInsert: whether to splice in a burst,
// and if so, of which type.
type Decision struct {
	Insert bool
	Type   Type
}

// ShouldInsert decides whether a breathing burst belongs at the current
// position, from the word count of the sentence just completed and whether
// this position is at a sentence end or a long pause.
func (g *Generator) ShouldInsert(sentenceWordCount int, atSentenceEnd, atLongPause bool) Decision {
	if !g.cfg.Enabled {
		return Decision{Insert: false}
	}

	switch {
	case atSentenceEnd && sentenceWordCount > sentenceDeepWords:
		return Decision{Insert: true, Type: Deep}
	case atSentenceEnd && sentenceWordCount > sentenceLongWords:
		return Decision{Insert: true, Type: Normal}
	case atLongPause:
		return Decision{Insert: true, Type: Normal}
	default:
		return Decision{Insert: false}
	}
}
