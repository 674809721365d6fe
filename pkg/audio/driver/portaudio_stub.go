//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package driver

import (
	"errors"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio driver implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio driver
func NewPortAudio() Driver {
	return &PortAudio{}
}

// Name returns the backend name
func (p *PortAudio) Name() string {
	return "portaudio"
}

// Initialize always fails in stub builds
func (p *PortAudio) Initialize() error {
	return errPortAudioDisabled
}

// Devices always fails in stub builds
func (p *PortAudio) Devices() ([]audio.DeviceCapabilities, error) {
	return nil, errPortAudioDisabled
}

// DefaultDevices always fails in stub builds
func (p *PortAudio) DefaultDevices() (int, int, error) {
	return -1, -1, errPortAudioDisabled
}

// Open always fails in stub builds
func (p *PortAudio) Open(params StreamParams, cb Callback) (Stream, error) {
	return nil, errPortAudioDisabled
}

// Terminate is a no-op in stub builds
func (p *PortAudio) Terminate() error {
	return nil
}
