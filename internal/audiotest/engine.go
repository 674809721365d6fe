// ABOUTME: Scripted transformation engine for tests
// ABOUTME: Yields a fixed number of frames, can fault, and records its lifecycle
package audiotest

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
)

// Engine is a scripted engine.Engine. Set the exported fields before streaming.
type Engine struct {
	// Yield is how many frames each Retrieve returns; negative means all requested
	Yield int
	// Value fills every retrieved sample unless Echo is set
	Value float32
	// Echo makes Retrieve return the most recently submitted samples
	Echo bool
	// Panic makes Submit panic
	Panic bool

	// LatencyFrames is reported by Latency
	LatencyFrames int

	ConfigureErr error
	ParamsErr    error

	SampleRate float64
	Channels   int
	Params     engine.Params

	last []float32

	bufferFrames   atomic.Int64
	dropped        atomic.Uint64
	submitted      atomic.Int64
	retrieved      atomic.Int64
	closes         atomic.Int32
	usedAfterClose atomic.Bool
}

// NewEngine returns an engine that yields everything requested as Value
func NewEngine(value float32) *Engine {
	return &Engine{Yield: -1, Value: value}
}

// Factory returns an engine.Factory that always hands out e and counts calls
func (e *Engine) Factory(calls *atomic.Int32) engine.Factory {
	return func(bufferFrames int) (engine.Engine, error) {
		if calls != nil {
			calls.Add(1)
		}
		e.bufferFrames.Store(int64(bufferFrames))
		return e, nil
	}
}

func (e *Engine) Configure(sampleRate float64, channels int) error {
	if e.ConfigureErr != nil {
		return e.ConfigureErr
	}
	e.SampleRate = sampleRate
	e.Channels = channels
	e.last = make([]float32, 0, 8192*channels)
	return nil
}

func (e *Engine) SetParams(p engine.Params) error {
	if e.ParamsErr != nil {
		return e.ParamsErr
	}
	e.Params = p
	return nil
}

func (e *Engine) Submit(frames []float32, frameCount int) {
	if e.closes.Load() > 0 {
		e.usedAfterClose.Store(true)
	}
	if e.Panic {
		panic("scripted engine fault")
	}
	if e.Echo {
		n := min(frameCount*e.Channels, len(frames), cap(e.last))
		e.last = append(e.last[:0], frames[:n]...)
	}
	e.submitted.Add(int64(frameCount))
}

func (e *Engine) Retrieve(out []float32, maxFrames int) int {
	if e.closes.Load() > 0 {
		e.usedAfterClose.Store(true)
	}
	n := maxFrames
	if e.Yield >= 0 {
		n = min(e.Yield, maxFrames)
	}
	if e.Echo {
		n = min(n, len(e.last)/e.Channels)
		copy(out, e.last[:n*e.Channels])
	} else {
		for i := range out[:n*e.Channels] {
			out[i] = e.Value
		}
	}
	e.retrieved.Add(int64(n))
	return n
}

func (e *Engine) Close() error {
	e.closes.Add(1)
	return nil
}

// Dropped returns the frames recorded with Drop
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// Drop records n frames as discarded
func (e *Engine) Drop(n uint64) {
	e.dropped.Add(n)
}

// Latency returns LatencyFrames
func (e *Engine) Latency() int {
	return e.LatencyFrames
}

// BufferFrames returns the buffer period the factory was last called with
func (e *Engine) BufferFrames() int {
	return int(e.bufferFrames.Load())
}

// Submitted returns the total frames submitted
func (e *Engine) Submitted() int64 {
	return e.submitted.Load()
}

// Retrieved returns the total frames retrieved
func (e *Engine) Retrieved() int64 {
	return e.retrieved.Load()
}

// Closes returns how often Close was called
func (e *Engine) Closes() int {
	return int(e.closes.Load())
}

// UsedAfterClose reports whether Submit or Retrieve ran after Close
func (e *Engine) UsedAfterClose() bool {
	return e.usedAfterClose.Load()
}
