// ABOUTME: Audio driver interface definition
// ABOUTME: Common duplex stream contract implemented by the audio backends
package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

// ErrFormatUnsupported is returned by Open when the device rejects the
// requested sample format. Callers may retry with another format.
var ErrFormatUnsupported = errors.New("sample format not supported")

// Driver is an audio I/O backend
type Driver interface {
	// Name returns the backend name
	Name() string

	// Initialize prepares the backend. Must succeed before anything else.
	Initialize() error

	// Devices lists every device with its capabilities. IDs are indexes.
	Devices() ([]audio.DeviceCapabilities, error)

	// DefaultDevices returns the IDs of the default input and output device
	DefaultDevices() (input, output int, err error)

	// Open creates a duplex stream that calls cb once per buffer period
	// after Start. It does not start the stream.
	Open(p StreamParams, cb Callback) (Stream, error)

	// Terminate releases the backend
	Terminate() error
}

// Stream is an opened duplex stream
type Stream interface {
	Start() error

	// Stop halts the stream. No callback runs after Stop returns.
	Stop() error

	Close() error
}

// Callback receives one buffer period of captured samples and fills the
// render buffer. The backend calls the method matching its wire format.
// in may be nil when no input is available.
type Callback interface {
	ProcessFloat32(in, out []float32)
	ProcessInt16(in, out []int16)
	ProcessBytes(in, out []byte)
}

// StreamParams describes the stream to open
type StreamParams struct {
	Input  int
	Output int

	Channels        int
	Format          audio.SampleFormat
	SampleRate      float64
	FramesPerBuffer int

	InputLatency  time.Duration
	OutputLatency time.Duration
}

// Config returns the stream shape as a StreamConfig
func (p StreamParams) Config() audio.StreamConfig {
	return audio.StreamConfig{SampleRate: p.SampleRate, Channels: p.Channels, Format: p.Format}
}

// Names lists the backends New accepts
func Names() []string {
	return []string{"portaudio", "malgo", "oto"}
}

// New creates a backend by name
func New(name string) (Driver, error) {
	switch name {
	case "portaudio":
		return NewPortAudio(), nil
	case "malgo", "":
		return NewMalgo(), nil
	case "oto":
		return NewOto(), nil
	default:
		return nil, fmt.Errorf("unknown driver: %q (supported: portaudio, malgo, oto)", name)
	}
}

// lookup returns the device with the given ID from devs
func lookup(devs []audio.DeviceCapabilities, id int) (audio.DeviceCapabilities, error) {
	if id < 0 || id >= len(devs) {
		return audio.DeviceCapabilities{}, fmt.Errorf("device %d out of range (0-%d)", id, len(devs)-1)
	}
	return devs[id], nil
}
