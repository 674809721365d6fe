//go:build !portaudio

// ABOUTME: Tests for the PortAudio stub
// ABOUTME: Verifies stub builds fail cleanly instead of opening devices
package driver

import "testing"

func TestPortAudioStub(t *testing.T) {
	d := NewPortAudio()

	if err := d.Initialize(); err == nil {
		t.Error("expected Initialize to fail without the portaudio tag")
	}
	if _, err := d.Devices(); err == nil {
		t.Error("expected Devices to fail without the portaudio tag")
	}
	if _, err := d.Open(StreamParams{}, nil); err == nil {
		t.Error("expected Open to fail without the portaudio tag")
	}
	if err := d.Terminate(); err != nil {
		t.Errorf("expected Terminate to succeed, got %v", err)
	}
}
