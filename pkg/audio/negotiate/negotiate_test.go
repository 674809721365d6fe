// ABOUTME: Tests for stream negotiation
// ABOUTME: Tests rate selection, channel mapping, rejections and the format fallback
package negotiate

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

func device(maxIn, maxOut int, rate float64) audio.DeviceCapabilities {
	return audio.DeviceCapabilities{
		Name:                    "test",
		MaxInputChannels:        maxIn,
		MaxOutputChannels:       maxOut,
		DefaultSampleRate:       rate,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultLowOutputLatency: 10 * time.Millisecond,
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name         string
		in, out      audio.DeviceCapabilities
		wantRate     float64
		wantChannels int
		wantErr      bool
	}{
		{"lower rate wins", device(2, 0, 48000), device(0, 2, 44100), 44100, 2, false},
		{"same rate", device(2, 0, 48000), device(0, 2, 48000), 48000, 2, false},
		{"many channels clamp to stereo", device(8, 0, 48000), device(0, 6, 48000), 48000, 2, false},
		{"mono both sides", device(1, 0, 16000), device(0, 1, 16000), 16000, 1, false},
		{"no input channels", device(0, 0, 48000), device(0, 2, 48000), 0, 0, true},
		{"no output channels", device(2, 0, 48000), device(2, 0, 48000), 0, 0, true},
		{"mono mic stereo speakers", device(1, 0, 48000), device(0, 2, 48000), 0, 0, true},
		{"zero rate", device(2, 0, 0), device(0, 2, 48000), 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Negotiate(tt.in, tt.out)
			if tt.wantErr {
				if !errors.Is(err, audio.ErrUnsupportedConfiguration) {
					t.Fatalf("expected unsupported configuration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SampleRate != tt.wantRate {
				t.Errorf("expected rate %v, got %v", tt.wantRate, cfg.SampleRate)
			}
			if cfg.Channels != tt.wantChannels {
				t.Errorf("expected %d channels, got %d", tt.wantChannels, cfg.Channels)
			}
			if cfg.Format != audio.Float32 {
				t.Errorf("expected float32, got %v", cfg.Format)
			}
		})
	}
}

func TestChannelsFor(t *testing.T) {
	for max, want := range map[int]int{-1: 0, 0: 0, 1: 1, 2: 2, 32: 2} {
		if got := ChannelsFor(max); got != want {
			t.Errorf("ChannelsFor(%d) = %d, want %d", max, got, want)
		}
	}
}

func TestFallback(t *testing.T) {
	f, ok := Fallback(audio.Float32)
	if !ok || f != audio.Int16 {
		t.Errorf("expected int16 fallback for float32, got %v %v", f, ok)
	}
	if _, ok := Fallback(audio.Int16); ok {
		t.Error("expected no fallback after int16")
	}
}

func TestLatencies(t *testing.T) {
	in, out := Latencies(device(2, 0, 48000), device(0, 2, 48000))
	if in != 5*time.Millisecond || out != 10*time.Millisecond {
		t.Errorf("unexpected latencies %v / %v", in, out)
	}
}
