package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplePCM16_SameRate(t *testing.T) {
	input := make([]byte, 100)
	for i := 0; i < 50; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 16000, 16000)
	require.NoError(t, err)
	assert.Len(t, output, len(input))
}

func TestResamplePCM16_Downsample(t *testing.T) {
	numInputSamples := 100
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 24000, 16000)
	require.NoError(t, err)

	expectedSamples := int(float64(numInputSamples) * 16000 / 24000)
	assert.Equal(t, expectedSamples, len(output)/2)
}

func TestResamplePCM16_Upsample(t *testing.T) {
	numInputSamples := 100
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 16000, 24000)
	require.NoError(t, err)

	expectedSamples := int(float64(numInputSamples) * 24000 / 16000)
	assert.Equal(t, expectedSamples, len(output)/2)
}

func TestResamplePCM16_InvalidInput(t *testing.T) {
	input := make([]byte, 101)
	_, err := ResamplePCM16(input, 24000, 16000)
	assert.Error(t, err)
}

func TestResamplePCM16_InvalidRates(t *testing.T) {
	input := make([]byte, 100)

	_, err := ResamplePCM16(input, 0, 16000)
	assert.Error(t, err)

	_, err = ResamplePCM16(input, 16000, 0)
	assert.Error(t, err)
}

func TestUpsampleNarrowToWide(t *testing.T) {
	numInputSamples := 160 // 20ms at 8kHz
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i%32768))
	}

	output, err := UpsampleNarrowToWide(input)
	require.NoError(t, err)
	assert.Equal(t, numInputSamples*2, len(output)/2)
}

func TestDownsampleWideToNarrow(t *testing.T) {
	numInputSamples := 320 // 20ms at 16kHz
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i%32768))
	}

	output, err := DownsampleWideToNarrow(input)
	require.NoError(t, err)
	assert.Equal(t, numInputSamples/2, len(output)/2)
}
