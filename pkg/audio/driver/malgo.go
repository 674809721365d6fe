// ABOUTME: Malgo-based duplex driver implementation
// ABOUTME: Uses miniaudio via malgo for capture and render in one device callback
package driver

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/gen2brain/malgo"
)

// malgoFallbackRate is used when a device reports no native format
const malgoFallbackRate = 48000

// Malgo driver implementation using malgo/miniaudio.
// Capture devices are listed first, then playback devices.
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	devices  []malgoDevice
	caps     []audio.DeviceCapabilities
	mu       sync.Mutex
}

type malgoDevice struct {
	kind malgo.DeviceType
	id   malgo.DeviceID
}

// NewMalgo creates a new Malgo driver
func NewMalgo() Driver {
	return &Malgo{}
}

// Name returns the backend name
func (m *Malgo) Name() string {
	return "malgo"
}

// Initialize creates the malgo context
func (m *Malgo) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	return nil
}

// Devices lists capture then playback devices
func (m *Malgo) Devices() ([]audio.DeviceCapabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return nil, fmt.Errorf("malgo not initialized")
	}

	m.devices = m.devices[:0]
	m.caps = m.caps[:0]
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := m.malgoCtx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s devices: %w", kindName(kind), err)
		}
		for _, info := range infos {
			m.devices = append(m.devices, malgoDevice{kind: kind, id: info.ID})
			m.caps = append(m.caps, m.capabilities(len(m.caps), kind, info))
		}
	}

	return append([]audio.DeviceCapabilities(nil), m.caps...), nil
}

// capabilities builds a snapshot from the device's native formats
func (m *Malgo) capabilities(id int, kind malgo.DeviceType, info malgo.DeviceInfo) audio.DeviceCapabilities {
	// Detailed info carries the native formats; the listing may not
	if full, err := m.malgoCtx.DeviceInfo(kind, info.ID, malgo.Shared); err == nil {
		info = full
	}

	channels := 0
	rate := 0.0
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		f := info.Formats[i]
		channels = max(channels, int(f.Channels))
		rate = max(rate, float64(f.SampleRate))
	}
	// miniaudio converts channels and rate itself when nothing is reported
	if channels == 0 {
		channels = 2
	}
	if rate == 0 {
		rate = malgoFallbackRate
	}

	caps := audio.DeviceCapabilities{
		ID:                id,
		Name:              info.Name(),
		HostAPI:           "miniaudio",
		DefaultSampleRate: rate,
	}
	isDefault := info.IsDefault != 0
	if kind == malgo.Capture {
		caps.MaxInputChannels = channels
		caps.IsDefaultInput = isDefault
	} else {
		caps.MaxOutputChannels = channels
		caps.IsDefaultOutput = isDefault
	}
	return caps
}

// DefaultDevices returns the devices miniaudio flags as default, or the
// first device of each direction
func (m *Malgo) DefaultDevices() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := pickDefault(m.caps, func(c audio.DeviceCapabilities) (bool, bool) {
		return c.MaxInputChannels > 0, c.IsDefaultInput
	})
	out := pickDefault(m.caps, func(c audio.DeviceCapabilities) (bool, bool) {
		return c.MaxOutputChannels > 0, c.IsDefaultOutput
	})
	if in < 0 {
		return -1, -1, fmt.Errorf("no capture device")
	}
	if out < 0 {
		return -1, -1, fmt.Errorf("no playback device")
	}
	return in, out, nil
}

// pickDefault returns the flagged default among usable devices, else the
// first usable one, else -1
func pickDefault(caps []audio.DeviceCapabilities, test func(audio.DeviceCapabilities) (usable, isDefault bool)) int {
	first := -1
	for i, c := range caps {
		usable, isDefault := test(c)
		if !usable {
			continue
		}
		if isDefault {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// Open initializes a duplex device. It is not started.
func (m *Malgo) Open(params StreamParams, cb Callback) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return nil, fmt.Errorf("malgo not initialized")
	}
	if _, err := lookup(m.caps, params.Input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if _, err := lookup(m.caps, params.Output); err != nil {
		return nil, fmt.Errorf("invalid output: %w", err)
	}

	var format malgo.FormatType
	switch params.Format {
	case audio.Float32:
		format = malgo.FormatF32
	case audio.Int16:
		format = malgo.FormatS16
	default:
		return nil, fmt.Errorf("%w: %v", ErrFormatUnsupported, params.Format)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = format
	deviceConfig.Capture.Channels = uint32(params.Channels)
	deviceConfig.Capture.DeviceID = m.devices[params.Input].id.Pointer()
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(params.Channels)
	deviceConfig.Playback.DeviceID = m.devices[params.Output].id.Pointer()
	deviceConfig.SampleRate = uint32(params.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(params.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		cb.ProcessBytes(pInputSamples, pOutputSample)
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		if errors.Is(err, malgo.ErrFormatNotSupported) {
			return nil, fmt.Errorf("%w: %v", ErrFormatUnsupported, err)
		}
		return nil, fmt.Errorf("failed to initialize duplex device: %w", err)
	}

	log.Printf("Duplex device initialized: %s, %d frames per period (malgo/%s)",
		params.Config(), params.FramesPerBuffer, formatName(format))

	return &malgoStream{device: device}, nil
}

// Terminate releases the malgo context
func (m *Malgo) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.devices = nil
	m.caps = nil
	return nil
}

// malgoStream wraps an initialized device. device.Stop waits for the
// running data callback to return.
type malgoStream struct {
	device *malgo.Device
	closed bool
}

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (s *malgoStream) Stop() error {
	if !s.device.IsStarted() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.device.Uninit()
	return nil
}

// kindName returns a human-readable device type
func kindName(kind malgo.DeviceType) string {
	switch kind {
	case malgo.Capture:
		return "capture"
	case malgo.Playback:
		return "playback"
	default:
		return "duplex"
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
