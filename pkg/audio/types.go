// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, device capabilities and the negotiated stream config
package audio

import (
	"fmt"
	"time"
)

// SampleFormat is the wire representation exchanged with the audio driver
type SampleFormat int

const (
	// Float32 is normalized 32-bit floating point, the preferred format
	Float32 SampleFormat = iota + 1
	// Int16 is signed 16-bit fixed point, the fallback format
	Int16
)

// String returns the format name
func (f SampleFormat) String() string {
	switch f {
	case Float32:
		return "float32"
	case Int16:
		return "int16"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// BytesPerSample returns the size of one sample on the wire
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case Float32:
		return 4
	case Int16:
		return 2
	default:
		return 0
	}
}

// Valid reports whether f is one of the known formats
func (f SampleFormat) Valid() bool {
	return f == Float32 || f == Int16
}

// DeviceCapabilities is a read-only snapshot of what a device reports
type DeviceCapabilities struct {
	ID      int
	Name    string
	HostAPI string

	MaxInputChannels  int
	MaxOutputChannels int

	DefaultLowInputLatency   time.Duration
	DefaultLowOutputLatency  time.Duration
	DefaultHighInputLatency  time.Duration
	DefaultHighOutputLatency time.Duration

	DefaultSampleRate float64

	IsDefaultInput  bool
	IsDefaultOutput bool
}

// StreamConfig is the negotiated stream configuration shared by capture and render
type StreamConfig struct {
	SampleRate float64
	Channels   int
	Format     SampleFormat
}

// WithFormat returns a copy of c using format f
func (c StreamConfig) WithFormat(f SampleFormat) StreamConfig {
	c.Format = f
	return c
}

// String returns a short human readable description
func (c StreamConfig) String() string {
	return fmt.Sprintf("%.0fHz %s %s", c.SampleRate, ChannelName(c.Channels), c.Format)
}

// ChannelName returns "Mono" for a single channel and "Stereo" otherwise
func ChannelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
