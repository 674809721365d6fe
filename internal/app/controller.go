// ABOUTME: Passthrough lifecycle controller
// ABOUTME: Sequences driver init, device selection, negotiation, stream open/start/stop and teardown
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/driver"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/negotiate"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/pipeline"
	"github.com/google/uuid"
)

// DefaultFramesPerBuffer is the buffer period when none is configured
const DefaultFramesPerBuffer = 512

// Config holds controller configuration
type Config struct {
	// Input and Output are device IDs; negative selects the driver default
	Input  int
	Output int

	FramesPerBuffer int
	Engine          engine.Factory
	Params          engine.Params
}

// State is the controller lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateDevicesEnumerated
	StateNegotiated
	StateStreamOpen
	StateRunning
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDevicesEnumerated:
		return "devices enumerated"
	case StateNegotiated:
		return "negotiated"
	case StateStreamOpen:
		return "stream open"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the controller for display
type Status struct {
	SessionID       string
	Driver          string
	State           State
	Input           audio.DeviceCapabilities
	Output          audio.DeviceCapabilities
	Config          audio.StreamConfig
	FramesPerBuffer int
	// LatencyFrames is the engine delay, zero when the engine does not report one
	LatencyFrames int
	FellBack      bool
	StartedAt     time.Time
	Stats         pipeline.Stats
}

// Controller owns the driver, the engine and the stream for one run.
// Its methods are called from one control goroutine; Status may be called
// from any goroutine.
type Controller struct {
	config    Config
	drv       driver.Driver
	sessionID string

	mu          sync.Mutex
	state       State
	initialized bool
	selected    bool
	devices     []audio.DeviceCapabilities
	input       audio.DeviceCapabilities
	output      audio.DeviceCapabilities
	streamCfg   audio.StreamConfig
	cbctx       pipeline.Context
	eng         engine.Engine
	latency     int
	pipe        *pipeline.Pipeline
	stream      driver.Stream
	fellBack    bool
	startedAt   time.Time
}

// New creates a controller for drv
func New(drv driver.Driver, config Config) *Controller {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if config.Engine == nil {
		config.Engine = engine.NewFactory(engine.Options{})
	}

	return &Controller{
		config:    config,
		drv:       drv,
		sessionID: uuid.New().String(),
	}
}

// SessionID identifies this run in logs and the status feed
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run performs the whole sequence, streams until ctx is cancelled, then
// stops and closes. Close runs on every path.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := c.Enumerate(); err != nil {
		return err
	}
	if err := c.Select(c.config.Input, c.config.Output); err != nil {
		return err
	}
	if err := c.Negotiate(); err != nil {
		return err
	}
	if err := c.Open(); err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Printf("Stop requested")

	return c.Stop()
}

// Enumerate initializes the driver and snapshots the device list
func (c *Controller) Enumerate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized {
		return fmt.Errorf("cannot enumerate in state %s", c.state)
	}

	if err := c.drv.Initialize(); err != nil {
		return audio.NewError(audio.KindInitialization, c.drv.Name(), err)
	}
	c.initialized = true

	devs, err := c.drv.Devices()
	if err != nil {
		return audio.NewError(audio.KindEnumeration, c.drv.Name(), err)
	}
	if len(devs) == 0 {
		return audio.Errorf(audio.KindEnumeration, c.drv.Name(), "no audio devices found")
	}

	c.devices = devs
	c.state = StateDevicesEnumerated
	log.Printf("Found %d audio devices (%s)", len(devs), c.drv.Name())
	return nil
}

// Devices returns the enumerated devices
func (c *Controller) Devices() []audio.DeviceCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.DeviceCapabilities(nil), c.devices...)
}

// Select picks the input and output devices. A negative ID selects the
// driver's default device for that direction.
func (c *Controller) Select(input, output int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDevicesEnumerated && c.state != StateNegotiated {
		return fmt.Errorf("cannot select devices in state %s", c.state)
	}

	if input < 0 || output < 0 {
		defIn, defOut, err := c.drv.DefaultDevices()
		if err != nil {
			return audio.NewError(audio.KindInvalidSelection, "default device", err)
		}
		if input < 0 {
			input = defIn
		}
		if output < 0 {
			output = defOut
		}
	}

	if input < 0 || input >= len(c.devices) {
		return audio.Errorf(audio.KindInvalidSelection, "select",
			"input device %d out of range (0-%d)", input, len(c.devices)-1)
	}
	if output < 0 || output >= len(c.devices) {
		return audio.Errorf(audio.KindInvalidSelection, "select",
			"output device %d out of range (0-%d)", output, len(c.devices)-1)
	}

	c.input = c.devices[input]
	c.output = c.devices[output]
	c.selected = true
	c.state = StateDevicesEnumerated

	log.Printf("Input device: [%d] %s", c.input.ID, c.input.Name)
	log.Printf("Output device: [%d] %s", c.output.ID, c.output.Name)
	return nil
}

// Negotiate computes the shared stream configuration of the selected devices
func (c *Controller) Negotiate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDevicesEnumerated || !c.selected {
		return fmt.Errorf("cannot negotiate in state %s", c.state)
	}

	cfg, err := negotiate.Negotiate(c.input, c.output)
	if err != nil {
		return err
	}

	c.streamCfg = cfg
	c.state = StateNegotiated
	log.Printf("Negotiated stream: %s", cfg)
	return nil
}

// Open creates and configures the engine, then opens the stream. A stream
// that rejects the preferred format is retried exactly once with the fallback.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNegotiated {
		return fmt.Errorf("cannot open stream in state %s", c.state)
	}

	eng, err := c.config.Engine(c.config.FramesPerBuffer)
	if err != nil {
		return audio.NewError(audio.KindStreamOpen, "create engine", err)
	}
	c.eng = eng
	if l, ok := eng.(engine.LatencyReporter); ok {
		c.latency = l.Latency()
	}

	if err := eng.Configure(c.streamCfg.SampleRate, c.streamCfg.Channels); err != nil {
		return audio.NewError(audio.KindStreamOpen, "configure engine", err)
	}
	if err := eng.SetParams(c.config.Params); err != nil {
		return audio.NewError(audio.KindStreamOpen, "configure engine", err)
	}

	c.cbctx = pipeline.Context{
		Engine:   eng,
		Format:   c.streamCfg.Format,
		Channels: c.streamCfg.Channels,
	}

	stream, pipe, err := c.openStream()
	if errors.Is(err, driver.ErrFormatUnsupported) {
		if fallback, ok := negotiate.Fallback(c.cbctx.Format); ok {
			log.Printf("Format %s not supported, retrying with %s", c.cbctx.Format, fallback)
			c.cbctx.Format = fallback
			c.streamCfg = c.streamCfg.WithFormat(fallback)
			c.fellBack = true
			stream, pipe, err = c.openStream()
		}
	}
	if err != nil {
		return audio.NewError(audio.KindStreamOpen, "open stream", err)
	}

	c.stream = stream
	c.pipe = pipe
	c.state = StateStreamOpen
	log.Printf("Stream open: %s, %d frames per buffer, engine latency %d frames",
		c.streamCfg, c.config.FramesPerBuffer, c.latency)
	return nil
}

// openStream builds a pipeline from the current callback context and opens
// the driver stream with it (must hold c.mu)
func (c *Controller) openStream() (driver.Stream, *pipeline.Pipeline, error) {
	pipe, err := pipeline.New(c.cbctx, c.config.FramesPerBuffer)
	if err != nil {
		return nil, nil, err
	}

	inLatency, outLatency := negotiate.Latencies(c.input, c.output)
	stream, err := c.drv.Open(driver.StreamParams{
		Input:           c.input.ID,
		Output:          c.output.ID,
		Channels:        c.cbctx.Channels,
		Format:          c.cbctx.Format,
		SampleRate:      c.streamCfg.SampleRate,
		FramesPerBuffer: c.config.FramesPerBuffer,
		InputLatency:    inLatency,
		OutputLatency:   outLatency,
	}, pipe)
	if err != nil {
		return nil, nil, err
	}
	return stream, pipe, nil
}

// Start starts the opened stream
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreamOpen && c.state != StateStopped {
		return fmt.Errorf("cannot start in state %s", c.state)
	}

	if err := c.stream.Start(); err != nil {
		return audio.NewError(audio.KindStreamOpen, "start stream", err)
	}

	c.state = StateRunning
	c.startedAt = time.Now()
	log.Printf("Passthrough running")
	return nil
}

// Stop stops the stream. When it returns no callback is running or will run.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if c.state != StateRunning {
		return nil
	}

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	c.state = StateStopped

	stats := c.pipe.Stats()
	log.Printf("Stream stopped after %d callbacks (%d frames, %d padded, %d dropped by engine)",
		stats.Callbacks, stats.Frames, stats.PaddedFrames, stats.DroppedFrames)
	if err := c.pipe.Err(); err != nil {
		log.Printf("Warning: %v", err)
	}
	return nil
}

// Close releases everything acquired so far. It is safe on every path and
// on repeated calls; the engine is destroyed once, after the stream stopped.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}

	var errs []error
	if c.stream != nil {
		if err := c.stopLocked(); err != nil {
			errs = append(errs, err)
		}
		if err := c.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stream: %w", err))
		}
		c.stream = nil
	}
	if c.eng != nil {
		if err := c.eng.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine: %w", err))
		}
		c.eng = nil
		c.cbctx.Engine = nil
	}
	if c.initialized {
		if err := c.drv.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate driver: %w", err))
		}
		c.initialized = false
	}

	c.state = StateClosed
	return errors.Join(errs...)
}

// Status returns a snapshot for display
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		SessionID:       c.sessionID,
		Driver:          c.drv.Name(),
		State:           c.state,
		Input:           c.input,
		Output:          c.output,
		Config:          c.streamCfg,
		FramesPerBuffer: c.config.FramesPerBuffer,
		LatencyFrames:   c.latency,
		FellBack:        c.fellBack,
		StartedAt:       c.startedAt,
	}
	if c.pipe != nil {
		s.Stats = c.pipe.Stats()
	}
	return s
}

// Stats returns the pipeline counters, or zero before the stream opened
func (c *Controller) Stats() pipeline.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipe == nil {
		return pipeline.Stats{}
	}
	return c.pipe.Stats()
}
