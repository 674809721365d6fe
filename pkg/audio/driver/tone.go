// ABOUTME: Test tone generator for render-only backends
// ABOUTME: Generates a 440Hz sine wave as captured input
package driver

import "math"

// Tone generates a sine wave. Not safe for concurrent use.
type Tone struct {
	frequency  float64
	amplitude  float64
	sampleRate float64
	phase      float64
}

// NewTone creates a 440Hz tone at half amplitude
func NewTone(sampleRate float64) *Tone {
	return &Tone{
		frequency:  440.0, // A4 note
		amplitude:  0.5,
		sampleRate: sampleRate,
	}
}

// Fill writes interleaved frames to dst, the same value on every channel
func (t *Tone) Fill(dst []float32, channels int) {
	step := 2 * math.Pi * t.frequency / t.sampleRate
	for i := 0; i+channels <= len(dst); i += channels {
		v := float32(t.amplitude * math.Sin(t.phase))
		for ch := 0; ch < channels; ch++ {
			dst[i+ch] = v
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}
