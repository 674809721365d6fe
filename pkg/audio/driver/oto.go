// ABOUTME: Oto-based render-only driver implementation
// ABOUTME: Renders through oto and feeds the callback a generated test tone as input
package driver

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/codec"
	"github.com/ebitengine/oto/v3"
)

const (
	otoToneDevice   = 0
	otoOutputDevice = 1
	otoSampleRate   = 48000
)

// oto only allows one context per process
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoOpts oto.NewContextOptions
)

// Oto driver implementation using the oto library. It has no capture
// side: device 0 is a test tone, device 1 is the default output.
type Oto struct {
	initialized bool
}

// NewOto creates a new Oto driver
func NewOto() Driver {
	return &Oto{}
}

// Name returns the backend name
func (o *Oto) Name() string {
	return "oto"
}

// Initialize marks the driver ready. The oto context is created on Open
// because its format is fixed at creation.
func (o *Oto) Initialize() error {
	o.initialized = true
	return nil
}

// Devices returns the tone source and the default output
func (o *Oto) Devices() ([]audio.DeviceCapabilities, error) {
	if !o.initialized {
		return nil, fmt.Errorf("oto not initialized")
	}
	return []audio.DeviceCapabilities{
		{
			ID:                     otoToneDevice,
			Name:                   "Test tone (440Hz)",
			HostAPI:                "oto",
			MaxInputChannels:       2,
			DefaultSampleRate:      otoSampleRate,
			DefaultLowInputLatency: 0,
			IsDefaultInput:         true,
		},
		{
			ID:                       otoOutputDevice,
			Name:                     "Default output",
			HostAPI:                  "oto",
			MaxOutputChannels:        2,
			DefaultSampleRate:        otoSampleRate,
			DefaultLowOutputLatency:  20 * time.Millisecond,
			DefaultHighOutputLatency: 100 * time.Millisecond,
			IsDefaultOutput:          true,
		},
	}, nil
}

// DefaultDevices returns the tone source and the default output
func (o *Oto) DefaultDevices() (int, int, error) {
	return otoToneDevice, otoOutputDevice, nil
}

// Open creates (or reuses) the oto context and a player pulling from the callback
func (o *Oto) Open(params StreamParams, cb Callback) (Stream, error) {
	if !o.initialized {
		return nil, fmt.Errorf("oto not initialized")
	}
	if params.Input != otoToneDevice {
		return nil, fmt.Errorf("invalid input: device %d cannot capture", params.Input)
	}
	if params.Output != otoOutputDevice {
		return nil, fmt.Errorf("invalid output: device %d cannot render", params.Output)
	}

	var format oto.Format
	switch params.Format {
	case audio.Float32:
		format = oto.FormatFloat32LE
	case audio.Int16:
		format = oto.FormatSignedInt16LE
	default:
		return nil, fmt.Errorf("%w: %v", ErrFormatUnsupported, params.Format)
	}

	opts := oto.NewContextOptions{
		SampleRate:   int(params.SampleRate),
		ChannelCount: params.Channels,
		Format:       format,
		BufferSize:   time.Duration(float64(params.FramesPerBuffer) / params.SampleRate * float64(time.Second)),
	}
	ctx, err := sharedContext(opts)
	if err != nil {
		return nil, err
	}

	s := newOtoStream(params, cb)
	s.player = ctx.NewPlayer(s)

	log.Printf("Oto stream opened: %s, %d frames per buffer", params.Config(), params.FramesPerBuffer)
	return s, nil
}

// sharedContext returns the process-wide oto context, creating it on first use
func sharedContext(opts oto.NewContextOptions) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoOpts.SampleRate != opts.SampleRate || otoOpts.ChannelCount != opts.ChannelCount || otoOpts.Format != opts.Format {
			return nil, fmt.Errorf("oto context already created for %dHz %dch; it cannot be reinitialized",
				otoOpts.SampleRate, otoOpts.ChannelCount)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	ctx, readyChan, err := oto.NewContext(&opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoOpts = opts
	return ctx, nil
}

// Terminate suspends the oto context; oto cannot release it
func (o *Oto) Terminate() error {
	o.initialized = false

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}

// otoStream is the io.Reader the oto player pulls from. Each Read is one
// callback invocation of at most FramesPerBuffer frames.
type otoStream struct {
	cb     Callback
	player *oto.Player
	tone   *Tone

	format     audio.SampleFormat
	channels   int
	frameBytes int
	maxFrames  int

	toneBuf []float32
	inBuf   []byte

	running  atomic.Bool
	inFlight atomic.Int32
	closed   bool
}

func newOtoStream(params StreamParams, cb Callback) *otoStream {
	frameBytes := params.Channels * params.Format.BytesPerSample()
	return &otoStream{
		cb:         cb,
		tone:       NewTone(params.SampleRate),
		format:     params.Format,
		channels:   params.Channels,
		frameBytes: frameBytes,
		maxFrames:  params.FramesPerBuffer,
		toneBuf:    make([]float32, params.FramesPerBuffer*params.Channels),
		inBuf:      make([]byte, params.FramesPerBuffer*frameBytes),
	}
}

// Read runs the callback for one chunk, or renders silence when stopped
func (s *otoStream) Read(p []byte) (int, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	if !s.running.Load() {
		clear(p)
		return len(p), nil
	}

	frames := min(len(p)/s.frameBytes, s.maxFrames)
	if frames == 0 {
		clear(p)
		return len(p), nil
	}
	n := frames * s.frameBytes

	s.tone.Fill(s.toneBuf[:frames*s.channels], s.channels)
	codec.Encode(s.inBuf[:n], s.toneBuf[:frames*s.channels], s.format)
	s.cb.ProcessBytes(s.inBuf[:n], p[:n])
	return n, nil
}

func (s *otoStream) Start() error {
	s.running.Store(true)
	s.player.Play()
	return nil
}

// Stop returns once no Read is inside the callback
func (s *otoStream) Stop() error {
	s.running.Store(false)
	s.player.Pause()
	for s.inFlight.Load() > 0 {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (s *otoStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.running.Load() {
		s.Stop()
	}
	return s.player.Close()
}
