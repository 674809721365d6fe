// ABOUTME: Simulated audio driver for tests
// ABOUTME: Scripted device lists and failures, with a goroutine playing the real-time thread
package audiotest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/codec"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/driver"
)

// Wire selects which callback method the simulated stream invokes
type Wire int

const (
	// WireTyped calls ProcessFloat32 or ProcessInt16 to match the format
	WireTyped Wire = iota
	// WireBytes calls ProcessBytes like byte-oriented backends
	WireBytes
)

// Driver is a scripted driver.Driver. Set the exported fields before use.
type Driver struct {
	Devs       []audio.DeviceCapabilities
	DefaultIn  int
	DefaultOut int

	InitErr    error
	DevicesErr error
	DefaultErr error
	OpenErr    error
	StartErr   error

	// Reject makes Open fail with driver.ErrFormatUnsupported for a format
	Reject map[audio.SampleFormat]bool

	Wire   Wire
	Period time.Duration

	// InputValue is the captured sample value; NilInput passes no input at all
	InputValue float32
	NilInput   bool

	mu         sync.Mutex
	inits      int
	terminates int
	opens      []driver.StreamParams
	streams    []*Stream
}

// NewDriver returns a driver with one stereo 48kHz input and one stereo
// 44.1kHz output
func NewDriver() *Driver {
	return &Driver{
		Devs: []audio.DeviceCapabilities{
			{ID: 0, Name: "Sim Mic", HostAPI: "sim", MaxInputChannels: 2, DefaultSampleRate: 48000,
				DefaultLowInputLatency: 5 * time.Millisecond, IsDefaultInput: true},
			{ID: 1, Name: "Sim Speakers", HostAPI: "sim", MaxOutputChannels: 2, DefaultSampleRate: 44100,
				DefaultLowOutputLatency: 10 * time.Millisecond, IsDefaultOutput: true},
		},
		DefaultIn:  0,
		DefaultOut: 1,
		Period:     time.Millisecond,
		InputValue: 0.25,
	}
}

func (d *Driver) Name() string { return "sim" }

func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	return d.InitErr
}

func (d *Driver) Devices() ([]audio.DeviceCapabilities, error) {
	if d.DevicesErr != nil {
		return nil, d.DevicesErr
	}
	return append([]audio.DeviceCapabilities(nil), d.Devs...), nil
}

func (d *Driver) DefaultDevices() (int, int, error) {
	if d.DefaultErr != nil {
		return -1, -1, d.DefaultErr
	}
	return d.DefaultIn, d.DefaultOut, nil
}

func (d *Driver) Open(p driver.StreamParams, cb driver.Callback) (driver.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opens = append(d.opens, p)
	if d.Reject[p.Format] {
		return nil, fmt.Errorf("%w: sim rejects %v", driver.ErrFormatUnsupported, p.Format)
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}

	s := &Stream{
		params:   p,
		cb:       cb,
		wire:     d.Wire,
		period:   d.Period,
		startErr: d.StartErr,
		value:    d.InputValue,
		nilInput: d.NilInput,
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *Driver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.terminates++
	return nil
}

// Inits returns how often Initialize was called
func (d *Driver) Inits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits
}

// Terminates returns how often Terminate was called
func (d *Driver) Terminates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.terminates
}

// Opens returns the parameters of every Open attempt, failed ones included
func (d *Driver) Opens() []driver.StreamParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.StreamParams(nil), d.opens...)
}

// Streams returns the successfully opened streams
func (d *Driver) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// Stream runs the callback on its own goroutine every period while started
type Stream struct {
	params   driver.StreamParams
	cb       driver.Callback
	wire     Wire
	period   time.Duration
	startErr error
	value    float32
	nilInput bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	calls  atomic.Int64
	closes atomic.Int32
}

// Params returns the parameters the stream was opened with
func (s *Stream) Params() driver.StreamParams {
	return s.params
}

func (s *Stream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	return nil
}

// Stop returns after the callback goroutine has exited
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
	return nil
}

func (s *Stream) Close() error {
	s.Stop()
	s.closes.Add(1)
	return nil
}

// Calls returns how many callbacks have completed
func (s *Stream) Calls() int64 {
	return s.calls.Load()
}

// Closes returns how often Close was called
func (s *Stream) Closes() int {
	return int(s.closes.Load())
}

// WaitForCalls waits until at least n callbacks completed or timeout passed
func (s *Stream) WaitForCalls(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.calls.Load() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return s.calls.Load() >= n
}

func (s *Stream) loop(stop, done chan struct{}) {
	defer close(done)

	samples := s.params.FramesPerBuffer * s.params.Channels
	input := make([]float32, samples)
	for i := range input {
		input[i] = s.value
	}

	var (
		f32In, f32Out []float32
		i16In, i16Out []int16
		bIn, bOut     []byte
	)
	switch {
	case s.wire == WireBytes:
		bIn = make([]byte, samples*s.params.Format.BytesPerSample())
		bOut = make([]byte, len(bIn))
		codec.Encode(bIn, input, s.params.Format)
	case s.params.Format == audio.Int16:
		i16In = make([]int16, samples)
		i16Out = make([]int16, samples)
		codec.EncodeInt16(i16In, input)
	default:
		f32In = input
		f32Out = make([]float32, samples)
	}
	if s.nilInput {
		f32In, i16In, bIn = nil, nil, nil
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		switch {
		case bOut != nil:
			s.cb.ProcessBytes(bIn, bOut)
		case i16Out != nil:
			s.cb.ProcessInt16(i16In, i16Out)
		default:
			s.cb.ProcessFloat32(f32In, f32Out)
		}
		s.calls.Add(1)
	}
}
