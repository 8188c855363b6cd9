// Package pause decides where synthetic pauses belong in a transcript and
// splices the corresponding silence into audio chunks.
package pause

import (
	"math"
	"unicode"
	"unicode/utf8"
)

const floorMs = 50

// durationTable maps a punctuation/boundary trigger to its base duration
// in milliseconds.
var durationTable = map[string]int{
	",":               150,
	".":                500,
	"?":                600,
	"!":                200,
	"sentence_boundary": 400,
}

// Point is one pause insertion point: a rune offset into the source text,
// the pause's duration, and the trigger that produced it.
type Point struct {
	Position   int
	DurationMs int
	Trigger    string
}

// Config scales and perturbs the base durations above.
type Config struct {
	Enabled    bool
	SpeechRate float64 // durations scaled by 1/speech_rate; defaults to 1.0
	Adaptive   bool
	// jitterFunc returns a uniform perturbation in [-1,1], used only when
	// Adaptive is set; defaults to a deterministic value so output is
	// reproducible without requiring callers to plumb a seed through.
	jitterFunc func(i int) float64
}

func (c Config) withDefaults() Config {
	if c.SpeechRate == 0 {
		c.SpeechRate = 1.0
	}
	if c.jitterFunc == nil {
		c.jitterFunc = deterministicJitter
	}
	return c
}

func deterministicJitter(i int) float64 {
	x := math.Sin(float64(i)*78.233)*43758.5453 - math.Floor(math.Sin(float64(i)*78.233)*43758.5453)
	return x*2 - 1
}

// Manager analyzes text for pause points and splices silence into audio.
type Manager struct {
	cfg        Config
	sampleRate int
}

// New constructs a Manager producing silence at the given PCM16 sample rate.
func New(cfg Config, sampleRate int) *Manager {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &Manager{cfg: cfg.withDefaults(), sampleRate: sampleRate}
}

// Analyze scans text for punctuation/sentence-boundary triggers and
// returns one Point per trigger found, in text order. A sentence-ending
// punctuation mark (`.`, `?`, `!`) immediately followed by whitespace and a
// capitalized word additionally emits a "sentence_boundary" point right
// after it, distinct from the punctuation point itself.
func (m *Manager) Analyze(text string) []Point {
	if !m.cfg.Enabled {
		return nil
	}

	runes := []rune(text)
	var points []Point
	for i, r := range runes {
		trigger := string(r)
		if base, ok := durationTable[trigger]; ok {
			points = append(points, Point{
				Position:   i,
				DurationMs: m.scale(base, i),
				Trigger:    trigger,
			})
		}
		if isSentenceEndingPunctuation(r) && startsNewSentenceAfter(runes, i) {
			points = append(points, Point{
				Position:   i + 1,
				DurationMs: m.scale(durationTable["sentence_boundary"], i+1),
				Trigger:    "sentence_boundary",
			})
		}
	}
	return points
}

func isSentenceEndingPunctuation(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// startsNewSentenceAfter reports whether the text following the
// punctuation at index end consists of whitespace followed by an
// upper-case letter, the signal that a new sentence begins there.
func startsNewSentenceAfter(runes []rune, end int) bool {
	i := end + 1
	if i >= len(runes) || !unicode.IsSpace(runes[i]) {
		return false
	}
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i < len(runes) && unicode.IsUpper(runes[i])
}

func (m *Manager) scale(baseMs, jitterSeed int) int {
	scaled := float64(baseMs) / m.cfg.SpeechRate
	if m.cfg.Adaptive {
		perturb := m.cfg.jitterFunc(jitterSeed)
		scaled *= 1 + 0.2*perturb
	}
	if scaled < floorMs {
		scaled = floorMs
	}
	return int(scaled)
}

// GeneratePause returns durationMs of PCM16 silence at the manager's
// configured sample rate.
func (m *Manager) GeneratePause(durationMs int) []byte {
	numSamples := durationMs * m.sampleRate / 1000
	return make([]byte, numSamples*2)
}

// Chunk is one audio slice tagged with the character offset it starts at,
// the unit insertPauses uses to decide where a pause point falls.
type Chunk struct {
	Bytes       []byte
	CharOffset  int
}

// InsertPauses splices silence into audioChunks: each pause point's silence
// is appended right after the first chunk whose character span (CharOffset
// plus its sample count divided by samplesPerChar) reaches the point's
// Position, and points past the last chunk are appended at the end. Chunks
// are not split, so a pause lands on a chunk boundary rather than at the
// exact offset.
func (m *Manager) InsertPauses(audioChunks []Chunk, points []Point, samplesPerChar float64) []Chunk {
	if len(points) == 0 {
		return audioChunks
	}

	out := make([]Chunk, 0, len(audioChunks)+len(points))
	pointIdx := 0
	bytesPerSample := 2

	for _, chunk := range audioChunks {
		out = append(out, chunk)
		chunkEndChar := chunk.CharOffset + int(float64(len(chunk.Bytes)/bytesPerSample)/samplesPerChar)

		for pointIdx < len(points) && points[pointIdx].Position <= chunkEndChar {
			silence := m.GeneratePause(points[pointIdx].DurationMs)
			out = append(out, Chunk{Bytes: silence, CharOffset: points[pointIdx].Position})
			pointIdx++
		}
	}
	for pointIdx < len(points) {
		silence := m.GeneratePause(points[pointIdx].DurationMs)
		out = append(out, Chunk{Bytes: silence, CharOffset: points[pointIdx].Position})
		pointIdx++
	}
	return out
}

// RuneLen is a small helper exposed for callers computing samplesPerChar
// from text rather than byte length.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
