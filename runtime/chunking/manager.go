// Package chunking chooses the output chunk granularity for egress audio
// from observed upstream latency and jitter.
package chunking

import "sync"

const historySize = 20

const (
	defaultMinMs     = 100
	defaultMaxMs     = 1000
	highLatencyMs    = 200
	highJitterMs     = 100
	lowLatencyMs     = 50
	lowJitterMs      = 20
)

// Config bounds the chunk size policy.
type Config struct {
	MinMs int
	MaxMs int
}

func (c Config) withDefaults() Config {
	if c.MinMs == 0 {
		c.MinMs = defaultMinMs
	}
	if c.MaxMs == 0 {
		c.MaxMs = defaultMaxMs
	}
	return c
}

// Manager tracks recent latency/jitter observations and derives the
// current optimal output chunk size from them.
type Manager struct {
	mu sync.Mutex

	cfg Config

	latencyHistory []float64
	jitterHistory  []float64
}

// New constructs a Manager from cfg.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// Observe records one latency/jitter sample, bounding each history to the
// last 20 observations.
func (m *Manager) Observe(latencyMs, jitterMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencyHistory = append(m.latencyHistory, latencyMs)
	if len(m.latencyHistory) > historySize {
		m.latencyHistory = m.latencyHistory[len(m.latencyHistory)-historySize:]
	}
	m.jitterHistory = append(m.jitterHistory, jitterMs)
	if len(m.jitterHistory) > historySize {
		m.jitterHistory = m.jitterHistory[len(m.jitterHistory)-historySize:]
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// CalculateOptimalChunkMs returns the current optimal chunk size in
// milliseconds. Explicit latencyMs/jitterMs override the tracked history
// averages for this one calculation when provided (non-nil).
func (m *Manager) CalculateOptimalChunkMs(latencyMs, jitterMs *float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	latency := mean(m.latencyHistory)
	if latencyMs != nil {
		latency = *latencyMs
	}
	jitter := mean(m.jitterHistory)
	if jitterMs != nil {
		jitter = *jitterMs
	}

	var chunkMs float64
	switch {
	case latency > highLatencyMs || jitter > highJitterMs:
		chunkMs = float64(m.cfg.MinMs)
	case latency < lowLatencyMs && jitter < lowJitterMs:
		chunkMs = float64(m.cfg.MaxMs)
	default:
		score := 1 - min1(latency/highLatencyMs+jitter/highJitterMs)
		chunkMs = float64(m.cfg.MinMs) + score*float64(m.cfg.MaxMs-m.cfg.MinMs)
	}

	if chunkMs < float64(m.cfg.MinMs) {
		chunkMs = float64(m.cfg.MinMs)
	}
	if chunkMs > float64(m.cfg.MaxMs) {
		chunkMs = float64(m.cfg.MaxMs)
	}
	return int(chunkMs)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// Chunk is one output-sized slice of audio carrying its source metadata.
type Chunk struct {
	Bytes    []byte
	Metadata map[string]any
}

// Split divides audio into chunks sized at the current optimal chunk size,
// in PCM16 bytes (2 bytes/sample at the given sample rate). The final
// chunk may be shorter than the target size.
func (m *Manager) Split(audio []byte, sampleRate int, metadata map[string]any) []Chunk {
	chunkMs := m.CalculateOptimalChunkMs(nil, nil)
	bytesPerChunk := (chunkMs * sampleRate / 1000) * 2
	if bytesPerChunk <= 0 {
		bytesPerChunk = len(audio)
	}

	var chunks []Chunk
	for offset := 0; offset < len(audio); offset += bytesPerChunk {
		end := offset + bytesPerChunk
		if end > len(audio) {
			end = len(audio)
		}
		chunks = append(chunks, Chunk{Bytes: audio[offset:end], Metadata: metadata})
	}
	return chunks
}
