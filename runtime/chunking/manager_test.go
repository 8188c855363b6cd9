package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/callbridge/streamcore/pkg/testutil"
)

func TestCalculateOptimalChunkMs_HighLatencyPicksMin(t *testing.T) {
	m := New(Config{})
	got := m.CalculateOptimalChunkMs(testutil.Ptr(250.0), testutil.Ptr(10.0))
	assert.Equal(t, defaultMinMs, got)
}

func TestCalculateOptimalChunkMs_HighJitterPicksMin(t *testing.T) {
	m := New(Config{})
	got := m.CalculateOptimalChunkMs(testutil.Ptr(10.0), testutil.Ptr(150.0))
	assert.Equal(t, defaultMinMs, got)
}

func TestCalculateOptimalChunkMs_LowLatencyAndJitterPicksMax(t *testing.T) {
	m := New(Config{})
	got := m.CalculateOptimalChunkMs(testutil.Ptr(10.0), testutil.Ptr(5.0))
	assert.Equal(t, defaultMaxMs, got)
}

func TestCalculateOptimalChunkMs_MidRangeInterpolates(t *testing.T) {
	m := New(Config{})
	got := m.CalculateOptimalChunkMs(testutil.Ptr(100.0), testutil.Ptr(50.0))
	assert.Greater(t, got, defaultMinMs)
	assert.Less(t, got, defaultMaxMs)
}

func TestCalculateOptimalChunkMs_AlwaysClampedToBounds(t *testing.T) {
	m := New(Config{MinMs: 100, MaxMs: 1000})
	for _, latency := range []float64{0, 50, 100, 200, 500} {
		for _, jitter := range []float64{0, 20, 50, 100, 300} {
			got := m.CalculateOptimalChunkMs(testutil.Ptr(latency), testutil.Ptr(jitter))
			assert.GreaterOrEqual(t, got, 100)
			assert.LessOrEqual(t, got, 1000)
		}
	}
}

func TestObserve_HistoryBoundedToTwentyEntries(t *testing.T) {
	m := New(Config{})
	for i := 0; i < 30; i++ {
		m.Observe(float64(i), float64(i))
	}
	assert.Len(t, m.latencyHistory, historySize)
	assert.Len(t, m.jitterHistory, historySize)
}

func TestSplit_ProducesChunksAtOptimalSize(t *testing.T) {
	m := New(Config{MinMs: 100, MaxMs: 1000})
	m.Observe(10, 5) // low latency/jitter -> max chunk size

	sampleRate := 16000
	// 2 seconds of audio at 16kHz, 16-bit mono.
	audio := make([]byte, 2*sampleRate*2)
	chunks := m.Split(audio, sampleRate, map[string]any{"call": "abc"})

	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "abc", c.Metadata["call"])
	}
}

func TestSplit_EmptyAudioProducesNoChunks(t *testing.T) {
	m := New(Config{})
	chunks := m.Split(nil, 16000, nil)
	assert.Empty(t, chunks)
}
