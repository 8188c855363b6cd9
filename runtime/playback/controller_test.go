package playback

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm16(vals ...int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestUpdateBufferLevel_LowWatermarkLowersRate(t *testing.T) {
	c := New(Config{})
	c.Start()
	c.UpdateBufferLevel(0.05)
	assert.InDelta(t, baseRate-rateStep, c.CurrentRate(), 1e-9)
	assert.Equal(t, Buffering, c.State())
}

func TestUpdateBufferLevel_HighWatermarkRaisesRate(t *testing.T) {
	c := New(Config{})
	c.Start()
	c.UpdateBufferLevel(0.95)
	assert.InDelta(t, baseRate+rateStep, c.CurrentRate(), 1e-9)
}

func TestUpdateBufferLevel_MidRangeReturnsToBase(t *testing.T) {
	c := New(Config{})
	c.Start()
	c.UpdateBufferLevel(0.05)
	c.UpdateBufferLevel(0.5)
	assert.InDelta(t, baseRate, c.CurrentRate(), 1e-9)
	assert.Equal(t, Playing, c.State())
}

func TestUpdateBufferLevel_RateAlwaysWithinConfiguredBounds(t *testing.T) {
	c := New(Config{MinRate: 0.95, MaxRate: 1.05})
	c.Start()
	for _, level := range []float64{0, 0.01, 0.5, 0.99, 1.0} {
		c.UpdateBufferLevel(level)
		rate := c.CurrentRate()
		assert.GreaterOrEqual(t, rate, 0.95)
		assert.LessOrEqual(t, rate, 1.05)
	}
}

func TestCrossfadeHead_ShortInputsReturnPrevUnchanged(t *testing.T) {
	prev := pcm16(1, 2)
	next := pcm16(3, 4)
	out := crossfadeHead(prev, next, 16000, 20) // 20ms @ 16kHz needs 320 samples, far more than 2
	assert.Equal(t, prev, out)
}

func TestCrossfadeHead_EqualGainRampAtMidpoint(t *testing.T) {
	sampleRate := 8
	crossfadeMs := 1000 // -> 8 samples
	prev := make([]int16, 8)
	for i := range prev {
		prev[i] = 100
	}
	next := make([]int16, 8)
	for i := range next {
		next[i] = 200
	}
	out := crossfadeHead(pcm16(prev...), pcm16(next...), sampleRate, crossfadeMs)
	assert.Len(t, out, 16) // ramp spans the whole prev buffer

	mid := int16(binary.LittleEndian.Uint16(out[8:])) // sample index 4, gain=0.5
	assert.InDelta(t, 150, mid, 5)
}

func TestConceal_FadesToSilence(t *testing.T) {
	last := pcm16(1000)
	out := Conceal(last, 10, 100) // 1 sample at 100Hz for 10ms
	assert.Len(t, out, 2)
}

func TestConceal_EmptyLastReturnsSilentBuffer(t *testing.T) {
	out := Conceal(nil, 20, 8000)
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestEmit_FirstCallReturnsNilPendingHeld(t *testing.T) {
	c := New(Config{CrossfadeMs: 0})
	out := c.Emit(pcm16(1, 2, 3))
	assert.Nil(t, out)
}

func TestEmit_SecondCallReturnsFirstFrame(t *testing.T) {
	c := New(Config{CrossfadeMs: 0})
	c.Emit(pcm16(1, 2, 3))
	out := c.Emit(pcm16(4, 5, 6))
	assert.Equal(t, pcm16(1, 2, 3), out)
}

func TestFlush_ReturnsWithheldFrame(t *testing.T) {
	c := New(Config{CrossfadeMs: 0})
	c.Emit(pcm16(1, 2, 3))
	out := c.Flush()
	assert.Equal(t, pcm16(1, 2, 3), out)
	assert.Nil(t, c.Flush())
}

func TestStop_ResetsRateAndPending(t *testing.T) {
	c := New(Config{})
	c.Start()
	c.UpdateBufferLevel(0.01)
	c.Emit(pcm16(1))
	c.Stop()
	assert.Equal(t, Stopped, c.State())
	assert.InDelta(t, baseRate, c.CurrentRate(), 1e-9)
	assert.Nil(t, c.Flush())
}
