//go:build portaudio

// ABOUTME: PortAudio driver implementation
// ABOUTME: Cross-platform duplex streams using PortAudio
package driver

import (
	"errors"
	"fmt"
	"log"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio driver implementation
type PortAudio struct {
	devices []*portaudio.DeviceInfo
}

// NewPortAudio creates a new PortAudio driver
func NewPortAudio() Driver {
	return &PortAudio{}
}

// Name returns the backend name
func (p *PortAudio) Name() string {
	return "portaudio"
}

// Initialize initializes PortAudio
func (p *PortAudio) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return nil
}

// Devices lists the PortAudio devices
func (p *PortAudio) Devices() ([]audio.DeviceCapabilities, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	p.devices = devs

	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	caps := make([]audio.DeviceCapabilities, len(devs))
	for i, d := range devs {
		hostAPI := ""
		if d.HostApi != nil {
			hostAPI = d.HostApi.Name
		}
		caps[i] = audio.DeviceCapabilities{
			ID:                       i,
			Name:                     d.Name,
			HostAPI:                  hostAPI,
			MaxInputChannels:         d.MaxInputChannels,
			MaxOutputChannels:        d.MaxOutputChannels,
			DefaultLowInputLatency:   d.DefaultLowInputLatency,
			DefaultLowOutputLatency:  d.DefaultLowOutputLatency,
			DefaultHighInputLatency:  d.DefaultHighInputLatency,
			DefaultHighOutputLatency: d.DefaultHighOutputLatency,
			DefaultSampleRate:        d.DefaultSampleRate,
			IsDefaultInput:           defIn != nil && d.Index == defIn.Index,
			IsDefaultOutput:          defOut != nil && d.Index == defOut.Index,
		}
	}
	return caps, nil
}

// DefaultDevices returns the PortAudio default input and output
func (p *PortAudio) DefaultDevices() (int, int, error) {
	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return -1, -1, fmt.Errorf("no default input device: %w", err)
	}
	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return -1, -1, fmt.Errorf("no default output device: %w", err)
	}
	return p.indexOf(in), p.indexOf(out), nil
}

func (p *PortAudio) indexOf(d *portaudio.DeviceInfo) int {
	for i, dev := range p.devices {
		if dev.Index == d.Index {
			return i
		}
	}
	return -1
}

// Open opens a duplex stream. The callback type selects the sample format.
func (p *PortAudio) Open(params StreamParams, cb Callback) (Stream, error) {
	if params.Input < 0 || params.Input >= len(p.devices) {
		return nil, fmt.Errorf("input device %d out of range", params.Input)
	}
	if params.Output < 0 || params.Output >= len(p.devices) {
		return nil, fmt.Errorf("output device %d out of range", params.Output)
	}

	sp := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   p.devices[params.Input],
			Channels: params.Channels,
			Latency:  params.InputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   p.devices[params.Output],
			Channels: params.Channels,
			Latency:  params.OutputLatency,
		},
		SampleRate:      params.SampleRate,
		FramesPerBuffer: params.FramesPerBuffer,
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	switch params.Format {
	case audio.Float32:
		stream, err = portaudio.OpenStream(sp, cb.ProcessFloat32)
	case audio.Int16:
		stream, err = portaudio.OpenStream(sp, cb.ProcessInt16)
	default:
		return nil, fmt.Errorf("%w: %v", ErrFormatUnsupported, params.Format)
	}
	if err != nil {
		if errors.Is(err, portaudio.SampleFormatNotSupported) {
			return nil, fmt.Errorf("%w: %v", ErrFormatUnsupported, err)
		}
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	log.Printf("PortAudio stream opened: %s, %d frames per buffer", params.Config(), params.FramesPerBuffer)
	return stream, nil
}

// Terminate releases PortAudio
func (p *PortAudio) Terminate() error {
	p.devices = nil
	return portaudio.Terminate()
}
