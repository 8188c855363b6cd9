package codec

import (
	"encoding/binary"

	pkgerrors "github.com/callbridge/streamcore/pkg/errors"
)

// DecodeNarrowToWide converts an 8-bit companded mono frame at 8kHz into a
// 16-bit linear little-endian mono frame at 16kHz. Output length is 4x the
// input length. The companded-to-linear step is local to this function; the
// 8kHz-to-16kHz resampling itself is UpsampleNarrowToWide's linear
// interpolation.
func DecodeNarrowToWide(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return []byte{}, nil
	}

	narrowLinear := make([]byte, len(input)*2)
	for i, b := range input {
		binary.LittleEndian.PutUint16(narrowLinear[i*2:], uint16(compandDecode(b))) //nolint:gosec // PCM16 round-trip
	}

	return UpsampleNarrowToWide(narrowLinear)
}

// EncodeWideToNarrow converts a 16-bit linear little-endian mono frame at
// 16kHz into an 8-bit companded mono frame at 8kHz. Input byte length must be
// a multiple of 2; output length is input length / 4. The 16kHz-to-8kHz
// decimation itself is DownsampleWideToNarrow; only the linear-to-companded
// step is local to this function.
func EncodeWideToNarrow(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return []byte{}, nil
	}
	if len(input)%2 != 0 {
		return nil, pkgerrors.New("codec", "EncodeWideToNarrow", nil).
			WithKind(pkgerrors.KindInvalidFormat).
			WithDetails(map[string]any{"input_len": len(input)})
	}

	narrowLinear, err := DownsampleWideToNarrow(input)
	if err != nil {
		return nil, err
	}

	numNarrowSamples := len(narrowLinear) / 2
	narrow := make([]byte, numNarrowSamples)
	for i := 0; i < numNarrowSamples; i++ {
		sample := int16(binary.LittleEndian.Uint16(narrowLinear[i*2:])) //nolint:gosec // PCM16 round-trip
		narrow[i] = compandEncode(sample)
	}
	return narrow, nil
}
