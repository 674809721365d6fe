// ABOUTME: Tests for the built-in transformation engines
// ABOUTME: Tests factory selection, passthrough identity and pitch engine latency
package engine

import (
	"math"
	"testing"
)

func TestNewSelectsEngine(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		wantErr bool
	}{
		{"default is wsola", "", false},
		{"wsola", KindWSOLA, false},
		{"spectral", KindSpectral, false},
		{"passthrough", KindPassthrough, false},
		{"unknown", Kind("granular"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := New(Options{Kind: tt.kind})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer eng.Close()
		})
	}
}

func TestConfigureRejectsBadShape(t *testing.T) {
	eng := NewPassthrough(64)

	if err := eng.Configure(0, 2); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := eng.Configure(48000, 3); err == nil {
		t.Error("expected error for 3 channels")
	}
	if err := eng.Configure(48000, 0); err == nil {
		t.Error("expected error for 0 channels")
	}
}

func TestPassthroughIdentity(t *testing.T) {
	eng := NewPassthrough(64)
	if err := eng.Configure(48000, 2); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	in := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	eng.Submit(in, 3)

	out := make([]float32, 6)
	if n := eng.Retrieve(out, 3); n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: expected %v, got %v", i, in[i], out[i])
		}
	}

	if n := eng.Retrieve(out, 3); n != 0 {
		t.Errorf("expected empty engine to yield 0 frames, got %d", n)
	}
}

func TestPassthroughBeforeConfigure(t *testing.T) {
	eng := NewPassthrough(64)
	eng.Submit([]float32{1, 2}, 1)
	if n := eng.Retrieve(make([]float32, 2), 1); n != 0 {
		t.Errorf("expected 0 frames from unconfigured engine, got %d", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := NewPitch(KindWSOLA, 256, 0)
	if err != nil {
		t.Fatalf("NewPitch failed: %v", err)
	}
	if err := p.Configure(48000, 1); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("first close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	p.Submit(make([]float32, 256), 256)
	if n := p.Retrieve(make([]float32, 256), 256); n != 0 {
		t.Errorf("expected closed engine to yield nothing, got %d", n)
	}
}

func TestPitchColdStartYieldsNothing(t *testing.T) {
	const block = 1024
	p, err := NewPitch(KindWSOLA, block, 0)
	if err != nil {
		t.Fatalf("NewPitch failed: %v", err)
	}
	if err := p.Configure(48000, 2); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if err := p.SetParams(Params{Semitones: -4}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	defer p.Close()

	const frames = 256
	in := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		in[i*2] = v
		in[i*2+1] = v
	}
	out := make([]float32, frames*2)

	// Three buffers fill 768 of 1024 frames: nothing comes out yet
	for i := 0; i < 3; i++ {
		p.Submit(in, frames)
		if n := p.Retrieve(out, frames); n != 0 {
			t.Fatalf("buffer %d: expected 0 frames during ramp-up, got %d", i, n)
		}
	}

	// The fourth completes the block
	p.Submit(in, frames)
	if n := p.Retrieve(out, frames); n != frames {
		t.Fatalf("expected %d frames after first block, got %d", frames, n)
	}
	if p.Latency() != block {
		t.Errorf("expected latency %d, got %d", block, p.Latency())
	}
}

func TestPitchZeroSemitonesIsIdentityAfterLatency(t *testing.T) {
	const block = 512
	p, err := NewPitch(KindWSOLA, block, 0)
	if err != nil {
		t.Fatalf("NewPitch failed: %v", err)
	}
	if err := p.Configure(44100, 1); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	defer p.Close()

	in := make([]float32, block)
	for i := range in {
		in[i] = float32(i%100) / 100
	}
	p.Submit(in, block)

	out := make([]float32, block)
	if n := p.Retrieve(out, block); n != block {
		t.Fatalf("expected %d frames, got %d", block, n)
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-6 {
			t.Fatalf("sample %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestPitchRejectsOutOfRangeShift(t *testing.T) {
	p, err := NewPitch(KindWSOLA, 256, 0)
	if err != nil {
		t.Fatalf("NewPitch failed: %v", err)
	}
	if err := p.Configure(48000, 2); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	defer p.Close()

	// algo-dsp accepts ratios in [0.25, 4]: +/-24 semitones
	if err := p.SetParams(Params{Semitones: 36}); err == nil {
		t.Error("expected error for +36 semitones")
	}
}

func TestNewPitchValidation(t *testing.T) {
	if _, err := NewPitch(KindPassthrough, 256, 0); err == nil {
		t.Error("expected error for non-pitch kind")
	}
	if _, err := NewPitch(KindWSOLA, 0, 0); err == nil {
		t.Error("expected error for zero block size")
	}
}

func TestQueuesHoldFullBuffer(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		frames int
	}{
		{"passthrough buffer above block", Options{Kind: KindPassthrough, BlockFrames: 4096, BufferFrames: 8192}, 8192},
		{"wsola eight blocks per buffer", Options{Kind: KindWSOLA, BlockFrames: 256, BufferFrames: 2048}, 2048},
		{"spectral sixteen blocks per buffer", Options{Kind: KindSpectral, BlockFrames: 256, BufferFrames: 4096}, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := New(tt.opts)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer eng.Close()
			if err := eng.Configure(48000, 2); err != nil {
				t.Fatalf("configure failed: %v", err)
			}

			in := make([]float32, tt.frames*2)
			out := make([]float32, tt.frames*2)
			for i := 0; i < 10; i++ {
				eng.Submit(in, tt.frames)
				if n := eng.Retrieve(out, tt.frames); n != tt.frames {
					t.Fatalf("period %d: expected %d frames, got %d", i, tt.frames, n)
				}
			}
			if d := eng.(DropCounter).Dropped(); d != 0 {
				t.Errorf("expected no drops, got %d", d)
			}
		})
	}
}

func TestPitchOutputBlocks(t *testing.T) {
	tests := []struct {
		block, buffer, want int
	}{
		{4096, 512, minOutputBlocks},
		{256, 2048, 9},
		{256, 2000, 9},
		{1024, 4096, 5},
	}

	for _, tt := range tests {
		p, err := NewPitch(KindWSOLA, tt.block, tt.buffer)
		if err != nil {
			t.Fatalf("NewPitch failed: %v", err)
		}
		if got := p.outputBlocks(); got != tt.want {
			t.Errorf("block %d buffer %d: expected %d output blocks, got %d", tt.block, tt.buffer, tt.want, got)
		}
	}
}

func TestDroppedCountsFrames(t *testing.T) {
	eng := NewPassthrough(4)
	if err := eng.Configure(48000, 2); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	eng.Submit(make([]float32, 20), 10)
	if d := eng.Dropped(); d != 6 {
		t.Errorf("expected 6 dropped frames, got %d", d)
	}
	if eng.Latency() != 0 {
		t.Errorf("expected zero latency, got %d", eng.Latency())
	}
}
