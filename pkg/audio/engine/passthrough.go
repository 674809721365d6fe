// ABOUTME: Identity transformation engine
// ABOUTME: Returns exactly the frames it was given, in order
package engine

// Passthrough is an identity engine backed by a FIFO
type Passthrough struct {
	capacityFrames int
	channels       int
	queue          *FIFO
	closed         bool
}

// NewPassthrough creates an identity engine that buffers up to
// capacityFrames. Submitting more than that between two Retrieve calls
// drops the excess.
func NewPassthrough(capacityFrames int) *Passthrough {
	if capacityFrames <= 0 {
		capacityFrames = DefaultBlockFrames
	}
	return &Passthrough{capacityFrames: capacityFrames}
}

func (p *Passthrough) Configure(sampleRate float64, channels int) error {
	if err := validateShape(sampleRate, channels); err != nil {
		return err
	}
	p.channels = channels
	p.queue = NewFIFO(p.capacityFrames * channels)
	return nil
}

func (p *Passthrough) SetParams(Params) error { return nil }

func (p *Passthrough) Submit(frames []float32, frameCount int) {
	if p.queue == nil || p.closed {
		return
	}
	n := min(frameCount*p.channels, len(frames))
	p.queue.Write(frames[:n])
}

func (p *Passthrough) Retrieve(out []float32, maxFrames int) int {
	if p.queue == nil || p.closed {
		return 0
	}
	frames := min(maxFrames, len(out)/p.channels, p.queue.Available()/p.channels)
	if frames <= 0 {
		return 0
	}
	p.queue.Read(out[:frames*p.channels])
	return frames
}

// Dropped returns frames that did not fit in the queue
func (p *Passthrough) Dropped() uint64 {
	if p.queue == nil {
		return 0
	}
	return p.queue.Dropped() / uint64(p.channels)
}

// Latency is always zero
func (p *Passthrough) Latency() int { return 0 }

func (p *Passthrough) Close() error {
	p.closed = true
	return nil
}
