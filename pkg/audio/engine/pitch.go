// ABOUTME: Streaming pitch-shift engine built on algo-dsp processors
// ABOUTME: Queues interleaved frames, shifts fixed blocks per channel, queues the result
package engine

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"
)

// minOutputBlocks is the least number of processed blocks the output queue holds
const minOutputBlocks = 4

// Pitch adapts the block-based algo-dsp pitch processors to the streaming
// submit/retrieve contract. Output appears one block after input starts,
// so Retrieve yields nothing during the first blockFrames of a stream.
//
// The processors keep no state between calls, so every block is shifted
// on its own and consecutive blocks meet at a hard splice. Larger blocks
// make the splices rarer.
type Pitch struct {
	kind         Kind
	blockFrames  int
	bufferFrames int

	sampleRate float64
	channels   int
	params     Params

	shifters []pitch.PitchProcessor
	in       *FIFO
	out      *FIFO
	block    []float32
	work     [][]float64

	closed bool
}

// NewPitch creates an unconfigured pitch engine processing blockFrames at
// a time for streams submitting up to bufferFrames per call
func NewPitch(kind Kind, blockFrames, bufferFrames int) (*Pitch, error) {
	if kind != KindWSOLA && kind != KindSpectral {
		return nil, fmt.Errorf("unsupported pitch engine kind: %q", kind)
	}
	if blockFrames <= 0 {
		return nil, fmt.Errorf("block size must be positive: %d", blockFrames)
	}
	if bufferFrames <= 0 {
		bufferFrames = blockFrames
	}
	return &Pitch{
		kind:         kind,
		blockFrames:  blockFrames,
		bufferFrames: bufferFrames,
	}, nil
}

// outputBlocks returns the output queue size in blocks. Between two
// Retrieve calls the queue holds less than one block of leftover plus at
// most ceil(bufferFrames/blockFrames) blocks from one Submit.
func (p *Pitch) outputBlocks() int {
	perSubmit := (p.bufferFrames + p.blockFrames - 1) / p.blockFrames
	return max(minOutputBlocks, perSubmit+1)
}

// Configure builds one processor per channel and allocates all queues
func (p *Pitch) Configure(sampleRate float64, channels int) error {
	if err := validateShape(sampleRate, channels); err != nil {
		return err
	}

	shifters := make([]pitch.PitchProcessor, channels)
	for ch := range shifters {
		s, err := newProcessor(p.kind, sampleRate)
		if err != nil {
			return fmt.Errorf("failed to create %s processor: %w", p.kind, err)
		}
		shifters[ch] = s
	}

	p.sampleRate = sampleRate
	p.channels = channels
	p.shifters = shifters
	p.in = NewFIFO(p.blockFrames * channels)
	p.out = NewFIFO(p.outputBlocks() * p.blockFrames * channels)
	p.block = make([]float32, p.blockFrames*channels)
	p.work = make([][]float64, channels)
	for ch := range p.work {
		p.work[ch] = make([]float64, p.blockFrames)
	}

	return p.applyParams()
}

// SetParams sets the pitch shift in semitones
func (p *Pitch) SetParams(params Params) error {
	p.params = params
	if p.shifters == nil {
		return nil
	}
	return p.applyParams()
}

func (p *Pitch) applyParams() error {
	for _, s := range p.shifters {
		if err := s.SetPitchSemitones(p.params.Semitones); err != nil {
			return fmt.Errorf("failed to set pitch: %w", err)
		}
	}
	return nil
}

// Submit queues frames and shifts every complete block
func (p *Pitch) Submit(frames []float32, frameCount int) {
	if p.shifters == nil || p.closed {
		return
	}

	samples := frames[:min(frameCount*p.channels, len(frames))]
	for len(samples) > 0 {
		n := p.in.Write(samples[:min(len(samples), p.in.Free())])
		samples = samples[n:]

		if p.in.Available() == p.in.Cap() {
			p.processBlock()
		} else if n == 0 {
			return
		}
	}
}

// Retrieve drains up to maxFrames shifted frames
func (p *Pitch) Retrieve(out []float32, maxFrames int) int {
	if p.shifters == nil || p.closed {
		return 0
	}
	frames := min(maxFrames, len(out)/p.channels, p.out.Available()/p.channels)
	if frames <= 0 {
		return 0
	}
	p.out.Read(out[:frames*p.channels])
	return frames
}

// processBlock deinterleaves one block, shifts each channel and queues the result
func (p *Pitch) processBlock() {
	p.in.Read(p.block)

	for ch, buf := range p.work {
		for i := range buf {
			buf[i] = float64(p.block[i*p.channels+ch])
		}
		p.shifters[ch].ProcessInPlace(buf)
		for i, v := range buf {
			p.block[i*p.channels+ch] = float32(v)
		}
	}

	p.out.Write(p.block)
}

// Dropped returns frames lost because the output queue was full
func (p *Pitch) Dropped() uint64 {
	if p.out == nil {
		return 0
	}
	return p.out.Dropped() / uint64(p.channels)
}

// Latency returns the engine delay in frames
func (p *Pitch) Latency() int {
	return p.blockFrames
}

// Close releases the processors. Safe to call more than once.
func (p *Pitch) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for _, s := range p.shifters {
		s.Reset()
	}
	p.shifters = nil
	return nil
}

func newProcessor(kind Kind, sampleRate float64) (pitch.PitchProcessor, error) {
	if kind == KindSpectral {
		return pitch.NewSpectralPitchShifter(sampleRate)
	}
	return pitch.NewPitchShifter(sampleRate)
}
