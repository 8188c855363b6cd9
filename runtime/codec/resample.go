// Package codec implements the narrow-band companded <-> linear wide-band PCM
// conversion chain used on the egress and ingress edges of a call's pipeline.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Narrow-band and wide-band sample rates, in Hz.
const (
	NarrowBandSampleRate = 8000  // the carrier's on-the-wire rate
	WideBandSampleRate   = 16000 // the upstream's on-the-wire rate
)

// ResamplePCM16 resamples linear PCM16 audio from one sample rate to another
// using linear interpolation between adjacent samples. Input and output are
// little-endian 16-bit signed PCM samples.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("codec: invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]byte, len(input))
		copy(result, input)
		return result, nil
	}

	const bytesPerSample = 2
	if len(input)%bytesPerSample != 0 {
		return nil, fmt.Errorf("codec: input length %d is not a multiple of %d bytes per sample", len(input), bytesPerSample)
	}

	numInputSamples := len(input) / bytesPerSample
	if numInputSamples == 0 {
		return []byte{}, nil
	}

	numOutputSamples := int(float64(numInputSamples) * float64(toRate) / float64(fromRate))
	if numOutputSamples == 0 {
		return []byte{}, nil
	}

	inputSamples := make([]int16, numInputSamples)
	for i := 0; i < numInputSamples; i++ {
		inputSamples[i] = int16(binary.LittleEndian.Uint16(input[i*bytesPerSample:])) //nolint:gosec // PCM16 round-trip
	}

	outputSamples := make([]int16, numOutputSamples)
	ratio := float64(fromRate) / float64(toRate)

	for i := 0; i < numOutputSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= numInputSamples-1 {
			outputSamples[i] = inputSamples[numInputSamples-1]
			continue
		}

		s0 := float64(inputSamples[srcIdx])
		s1 := float64(inputSamples[srcIdx+1])
		outputSamples[i] = clampToInt16(s0 + frac*(s1-s0))
	}

	output := make([]byte, numOutputSamples*bytesPerSample)
	for i := 0; i < numOutputSamples; i++ {
		binary.LittleEndian.PutUint16(output[i*bytesPerSample:], uint16(outputSamples[i])) //nolint:gosec // PCM16 round-trip
	}

	return output, nil
}

// UpsampleNarrowToWide resamples linear PCM16 from the narrow-band rate (8kHz)
// to the wide-band rate (16kHz) via linear interpolation, doubling the sample count.
func UpsampleNarrowToWide(input []byte) ([]byte, error) {
	return ResamplePCM16(input, NarrowBandSampleRate, WideBandSampleRate)
}

// DownsampleWideToNarrow resamples linear PCM16 from the wide-band rate (16kHz)
// to the narrow-band rate (8kHz) by decimation (keeping every second sample),
// matching the encoder's decimation step described for encode_wide_to_narrow.
func DownsampleWideToNarrow(input []byte) ([]byte, error) {
	const bytesPerSample = 2
	if len(input)%bytesPerSample != 0 {
		return nil, fmt.Errorf("codec: input length %d is not a multiple of %d bytes per sample", len(input), bytesPerSample)
	}
	numInputSamples := len(input) / bytesPerSample
	numOutputSamples := numInputSamples / 2
	output := make([]byte, numOutputSamples*bytesPerSample)
	for i := 0; i < numOutputSamples; i++ {
		copy(output[i*bytesPerSample:], input[(i*2)*bytesPerSample:(i*2)*bytesPerSample+bytesPerSample])
	}
	return output, nil
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
