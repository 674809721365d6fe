// ABOUTME: Single-owner circular sample queue
// ABOUTME: Non-blocking FIFO used by engines for internal buffering
package engine

import "sync/atomic"

// FIFO is a circular buffer of float32 samples.
//
// It is not safe for concurrent use. Once streaming starts only the
// real-time context touches it, so it carries no lock. Dropped alone may
// be read from any goroutine.
type FIFO struct {
	buffer   []float32
	readPos  int
	writePos int
	count    int
	dropped  atomic.Uint64
}

// NewFIFO creates a FIFO with given capacity (in samples)
func NewFIFO(capacity int) *FIFO {
	return &FIFO{
		buffer: make([]float32, capacity),
	}
}

// Write appends samples and returns how many fit. The rest are counted as dropped.
func (f *FIFO) Write(samples []float32) int {
	n := min(len(samples), f.Free())
	if n < len(samples) {
		f.dropped.Add(uint64(len(samples) - n))
	}

	first := min(n, len(f.buffer)-f.writePos)
	copy(f.buffer[f.writePos:], samples[:first])
	copy(f.buffer, samples[first:n])

	f.writePos = (f.writePos + n) % max(len(f.buffer), 1)
	f.count += n
	return n
}

// Read removes up to len(samples) samples and returns how many were read
func (f *FIFO) Read(samples []float32) int {
	n := min(len(samples), f.count)

	first := min(n, len(f.buffer)-f.readPos)
	copy(samples, f.buffer[f.readPos:f.readPos+first])
	copy(samples[first:n], f.buffer)

	f.readPos = (f.readPos + n) % max(len(f.buffer), 1)
	f.count -= n
	return n
}

// Available returns the number of samples ready to read
func (f *FIFO) Available() int {
	return f.count
}

// Free returns the number of free slots
func (f *FIFO) Free() int {
	return len(f.buffer) - f.count
}

// Cap returns the capacity in samples
func (f *FIFO) Cap() int {
	return len(f.buffer)
}

// Dropped returns how many samples did not fit since creation
func (f *FIFO) Dropped() uint64 {
	return f.dropped.Load()
}

// Reset empties the FIFO
func (f *FIFO) Reset() {
	f.readPos = 0
	f.writePos = 0
	f.count = 0
}
