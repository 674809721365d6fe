// ABOUTME: Real-time callback pipeline between the audio driver and the engine
// ABOUTME: Decodes captured samples, runs the engine, pads and encodes the render buffer
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/codec"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
)

// Context is the state the callback needs. The pipeline copies it when built.
type Context struct {
	Engine   engine.Engine
	Format   audio.SampleFormat
	Channels int
}

// Stats are cumulative counters since the pipeline was built
type Stats struct {
	Callbacks     uint64 // driver invocations
	Frames        uint64 // frames rendered
	PaddedFrames  uint64 // frames the engine did not supply, rendered as silence
	SilentBuffers uint64 // chunks where the engine supplied nothing
	MissingInput  uint64 // chunks with no or short captured input
	Faults        uint64 // recovered panics; the affected buffer was silenced
	DroppedFrames uint64 // frames the engine discarded on internal overflow
}

// Pipeline is bound to one open stream. Its Process methods run on the
// driver's real-time thread: they never allocate, lock, block or log.
type Pipeline struct {
	ctx             Context
	framesPerBuffer int
	drops           engine.DropCounter

	in  []float32
	out []float32

	callbacks     atomic.Uint64
	frames        atomic.Uint64
	paddedFrames  atomic.Uint64
	silentBuffers atomic.Uint64
	missingInput  atomic.Uint64
	faults        atomic.Uint64
}

// New builds a pipeline and preallocates its scratch buffers
func New(ctx Context, framesPerBuffer int) (*Pipeline, error) {
	if ctx.Engine == nil {
		return nil, errors.New("pipeline needs an engine")
	}
	if ctx.Channels < 1 || ctx.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d (supported: 1, 2)", ctx.Channels)
	}
	if !ctx.Format.Valid() {
		return nil, fmt.Errorf("unsupported sample format: %v", ctx.Format)
	}
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive: %d", framesPerBuffer)
	}

	samples := framesPerBuffer * ctx.Channels
	drops, _ := ctx.Engine.(engine.DropCounter)
	return &Pipeline{
		ctx:             ctx,
		framesPerBuffer: framesPerBuffer,
		drops:           drops,
		in:              make([]float32, samples),
		out:             make([]float32, samples),
	}, nil
}

// Format returns the wire format the pipeline was built for
func (p *Pipeline) Format() audio.SampleFormat {
	return p.ctx.Format
}

// Channels returns the interleaved channel count
func (p *Pipeline) Channels() int {
	return p.ctx.Channels
}

// ProcessFloat32 handles one buffer period of float32 samples. A nil or
// short in is treated as silence for the missing part.
func (p *Pipeline) ProcessFloat32(in, out []float32) {
	p.callbacks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			clear(out)
			p.faults.Add(1)
		}
	}()

	ch := p.ctx.Channels
	frames := len(out) / ch
	clear(out[frames*ch:])

	for off := 0; off < frames; off += p.framesPerBuffer {
		n := min(p.framesPerBuffer, frames-off)
		lo, hi := off*ch, (off+n)*ch

		decoded := 0
		if lo < len(in) {
			decoded = codec.DecodeFloat32(p.in[:n*ch], in[lo:min(hi, len(in))])
		}
		p.transform(n, decoded)
		codec.EncodeFloat32(out[lo:hi], p.out[:n*ch])
	}
}

// ProcessInt16 handles one buffer period of int16 samples
func (p *Pipeline) ProcessInt16(in, out []int16) {
	p.callbacks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			clear(out)
			p.faults.Add(1)
		}
	}()

	ch := p.ctx.Channels
	frames := len(out) / ch
	clear(out[frames*ch:])

	for off := 0; off < frames; off += p.framesPerBuffer {
		n := min(p.framesPerBuffer, frames-off)
		lo, hi := off*ch, (off+n)*ch

		decoded := 0
		if lo < len(in) {
			decoded = codec.DecodeInt16(p.in[:n*ch], in[lo:min(hi, len(in))])
		}
		p.transform(n, decoded)
		codec.EncodeInt16(out[lo:hi], p.out[:n*ch])
	}
}

// ProcessBytes handles one buffer period of little-endian interleaved
// samples in the pipeline's format
func (p *Pipeline) ProcessBytes(in, out []byte) {
	p.callbacks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			clear(out)
			p.faults.Add(1)
		}
	}()

	ch := p.ctx.Channels
	frameBytes := ch * p.ctx.Format.BytesPerSample()
	frames := len(out) / frameBytes
	clear(out[frames*frameBytes:])

	for off := 0; off < frames; off += p.framesPerBuffer {
		n := min(p.framesPerBuffer, frames-off)
		lo, hi := off*frameBytes, (off+n)*frameBytes

		decoded := 0
		if lo < len(in) {
			decoded = codec.Decode(p.in[:n*ch], in[lo:min(hi, len(in))], p.ctx.Format)
		}
		p.transform(n, decoded)
		codec.Encode(out[lo:hi], p.out[:n*ch], p.ctx.Format)
	}
}

// transform runs one chunk of frames through the engine. decoded is how many
// samples of p.in hold captured input; the rest is silenced.
func (p *Pipeline) transform(frames, decoded int) {
	ch := p.ctx.Channels
	in := p.in[:frames*ch]
	if decoded < len(in) {
		clear(in[decoded:])
		p.missingInput.Add(1)
	}

	p.ctx.Engine.Submit(in, frames)

	out := p.out[:frames*ch]
	n := p.ctx.Engine.Retrieve(out, frames)
	n = max(0, min(n, frames))
	if n < frames {
		clear(out[n*ch:])
		p.paddedFrames.Add(uint64(frames - n))
		if n == 0 {
			p.silentBuffers.Add(1)
		}
	}

	p.frames.Add(uint64(frames))
}

// Stats returns a snapshot of the counters. Safe from any goroutine.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Callbacks:     p.callbacks.Load(),
		Frames:        p.frames.Load(),
		PaddedFrames:  p.paddedFrames.Load(),
		SilentBuffers: p.silentBuffers.Load(),
		MissingInput:  p.missingInput.Load(),
		Faults:        p.faults.Load(),
	}
	if p.drops != nil {
		s.DroppedFrames = p.drops.Dropped()
	}
	return s
}

// Err reports recovered callback faults as a RuntimeCallbackFault, or nil
func (p *Pipeline) Err() error {
	if n := p.faults.Load(); n > 0 {
		return audio.Errorf(audio.KindRuntimeCallbackFault, "callback", "%d buffer(s) silenced after a fault", n)
	}
	return nil
}
