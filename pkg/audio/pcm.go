package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// MarshalPCM16 converts float samples in [-1, 1] to little-endian PCM16
// bytes. Samples outside the range are clamped.
func MarshalPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// UnmarshalPCM16 converts little-endian PCM16 bytes to float samples
// in [-1, 1). Returns ErrMalformedAudio for odd-length input.
func UnmarshalPCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd byte count %d: %w", len(data), ErrMalformedAudio)
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return samples, nil
}

// EncodeFrame encodes captured samples for transport: PCM16LE packed,
// then base64.
func EncodeFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(MarshalPCM16(samples))
}

// DecodeChunk decodes a transport audio chunk into playable PCM16LE
// bytes. Malformed input returns ErrMalformedAudio; the caller should
// log and drop the chunk.
func DecodeChunk(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("bad transport encoding: %w", ErrMalformedAudio)
	}
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("truncated sample data: %w", ErrMalformedAudio)
	}
	return raw, nil
}
