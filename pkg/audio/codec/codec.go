// ABOUTME: Sample codec between wire formats and the canonical float domain
// ABOUTME: Allocation-free conversions usable from the real-time callback
package codec

import (
	"encoding/binary"
	"math"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

const (
	// int16DecodeScale maps the full signed 16-bit range onto [-1, 1)
	int16DecodeScale = 32768.0
	// int16EncodeScale keeps +1.0 representable without overflow
	int16EncodeScale = 32767.0
)

// DecodeFloat32 copies float32 wire samples into dst. Returns samples converted.
func DecodeFloat32(dst, src []float32) int {
	return copy(dst, src)
}

// DecodeInt16 converts int16 wire samples into dst. Values are not clamped.
func DecodeInt16(dst []float32, src []int16) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = float32(src[i]) / int16DecodeScale
	}
	return n
}

// EncodeFloat32 copies canonical samples to float32 wire samples
func EncodeFloat32(dst, src []float32) int {
	return copy(dst, src)
}

// EncodeInt16 converts canonical samples to int16, clamping to [-1, 1] first
func EncodeInt16(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = ToInt16(src[i])
	}
	return n
}

// ToInt16 converts one canonical sample to int16 (clamped, truncated toward zero)
func ToInt16(sample float32) int16 {
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	} else if sample != sample {
		// NaN
		sample = 0
	}
	return int16(sample * int16EncodeScale)
}

// Decode converts little-endian interleaved wire bytes into dst.
// Returns the number of samples converted; a trailing partial sample is ignored.
func Decode(dst []float32, src []byte, format audio.SampleFormat) int {
	switch format {
	case audio.Float32:
		n := min(len(dst), len(src)/4)
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
		return n
	case audio.Int16:
		n := min(len(dst), len(src)/2)
		for i := 0; i < n; i++ {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[i*2:]))) / int16DecodeScale
		}
		return n
	default:
		return 0
	}
}

// Encode converts canonical samples into little-endian interleaved wire bytes
func Encode(dst []byte, src []float32, format audio.SampleFormat) int {
	switch format {
	case audio.Float32:
		n := min(len(dst)/4, len(src))
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
		}
		return n
	case audio.Int16:
		n := min(len(dst)/2, len(src))
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(ToInt16(src[i])))
		}
		return n
	default:
		return 0
	}
}
