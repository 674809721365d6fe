// ABOUTME: Transformation engine contract
// ABOUTME: Narrow submit/retrieve interface plus a factory for the built-in engines
package engine

import (
	"fmt"
)

// Params are the transformation parameters, set once before streaming
type Params struct {
	// Semitones is the pitch shift; 0 leaves pitch unchanged
	Semitones float64
}

// Engine is a streaming transformation engine.
//
// Submit and Retrieve are called from the real-time context and must not
// block. Retrieve may return fewer frames than requested, including zero,
// at any time (latency, lookahead, cold start).
type Engine interface {
	// Configure sets the stream shape. Called once before streaming.
	Configure(sampleRate float64, channels int) error

	// SetParams sets the transformation parameters. Called once before streaming.
	SetParams(p Params) error

	// Submit pushes exactly frameCount interleaved frames
	Submit(frames []float32, frameCount int)

	// Retrieve writes up to maxFrames interleaved frames into out and
	// returns how many were written
	Retrieve(out []float32, maxFrames int) int

	// Close destroys the engine. Safe to call more than once.
	Close() error
}

// Kind selects a built-in engine
type Kind string

const (
	// KindWSOLA is the time-domain pitch shifter
	KindWSOLA Kind = "wsola"
	// KindSpectral is the phase-vocoder pitch shifter
	KindSpectral Kind = "spectral"
	// KindPassthrough returns its input unchanged
	KindPassthrough Kind = "passthrough"
)

// DefaultBlockFrames is the processing block of the pitch engines
const DefaultBlockFrames = 4096

// Options configures New
type Options struct {
	Kind        Kind
	BlockFrames int
	// BufferFrames is the largest frameCount passed to Submit. Internal
	// queues are sized so a full buffer is never dropped.
	BufferFrames int
}

// Factory creates a fresh, unconfigured engine for streams submitting up
// to bufferFrames frames at a time
type Factory func(bufferFrames int) (Engine, error)

// DropCounter is implemented by engines that discard frames when an
// internal queue overflows
type DropCounter interface {
	// Dropped returns the frames discarded since Configure. Safe from any goroutine.
	Dropped() uint64
}

// LatencyReporter is implemented by engines with a fixed delay between
// Submit and the matching Retrieve
type LatencyReporter interface {
	// Latency returns the delay in frames
	Latency() int
}

// New creates a built-in engine
func New(opts Options) (Engine, error) {
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = DefaultBlockFrames
	}
	if opts.BufferFrames <= 0 {
		opts.BufferFrames = opts.BlockFrames
	}

	switch opts.Kind {
	case KindWSOLA, KindSpectral, "":
		kind := opts.Kind
		if kind == "" {
			kind = KindWSOLA
		}
		return NewPitch(kind, opts.BlockFrames, opts.BufferFrames)
	case KindPassthrough:
		return NewPassthrough(max(opts.BlockFrames, opts.BufferFrames)), nil
	default:
		return nil, fmt.Errorf("unknown engine: %q (supported: wsola, spectral, passthrough)", opts.Kind)
	}
}

// NewFactory returns a Factory that builds engines from opts
func NewFactory(opts Options) Factory {
	return func(bufferFrames int) (Engine, error) {
		opts.BufferFrames = bufferFrames
		return New(opts)
	}
}

func validateShape(sampleRate float64, channels int) error {
	if !(sampleRate > 0) {
		return fmt.Errorf("sample rate must be positive: %f", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return fmt.Errorf("unsupported channel count: %d (supported: 1, 2)", channels)
	}
	return nil
}
