package audio

import (
	"encoding/binary"
	"math"
)

// Int16Range is the scale used to convert between float32 and 16-bit PCM.
const Int16Range = 32767

// FloatToInt16 converts one sample, clipping to [-1, 1].
func FloatToInt16(s float32) int16 {
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int16(math.Round(float64(s) * Int16Range))
}

// Float32FromLE decodes little-endian float32 PCM bytes.
// Trailing bytes that do not form a whole sample are ignored.
func Float32FromLE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// AppendFloat32LE appends samples as little-endian float32 bytes.
func AppendFloat32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// Remix converts interleaved samples between channel counts.
// Mono is duplicated to every output channel; anything else is averaged down
// to mono first. Returns samples unchanged when the counts already match.
func Remix(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	n := len(samples) / from
	out := make([]float32, n*to)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < from; c++ {
			sum += samples[i*from+c]
		}
		v := sum / float32(from)
		for c := 0; c < to; c++ {
			out[i*to+c] = v
		}
	}
	return out
}
