// ABOUTME: Audio fundamentals package providing core types and error kinds
// ABOUTME: Defines SampleFormat, DeviceCapabilities, StreamConfig and Error
// Package audio provides the fundamental types shared by the passthrough core.
//
// This package defines:
//   - SampleFormat: the closed set of wire formats (Float32, Int16)
//   - DeviceCapabilities: a read-only snapshot of what a device reports
//   - StreamConfig: the negotiated rate, channel count and format
//   - Error: classified failures matched with errors.Is
//
// Example:
//
//	cfg := audio.StreamConfig{
//	    SampleRate: 48000,
//	    Channels:   2,
//	    Format:     audio.Float32,
//	}
//
//	// Fall back to 16-bit
//	cfg = cfg.WithFormat(audio.Int16)
//
//	if errors.Is(err, audio.ErrUnsupportedConfiguration) {
//	    // no viable stream
//	}
package audio
