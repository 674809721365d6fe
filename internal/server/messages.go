// ABOUTME: JSON messages of the /status websocket feed
// ABOUTME: Converts controller snapshots into the wire representation
package server

import (
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/internal/version"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

// Message is the envelope of every feed message
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServerHello is sent once when a client connects
type ServerHello struct {
	ServerID     string `json:"server_id"`
	Name         string `json:"name"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	Version      string `json:"version"`
	IntervalMs   int64  `json:"interval_ms"`
}

// Device describes a selected device
type Device struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	HostAPI string  `json:"host_api,omitempty"`
	Rate    float64 `json:"default_sample_rate"`
}

// Stats mirrors the pipeline counters
type Stats struct {
	Callbacks     uint64 `json:"callbacks"`
	Frames        uint64 `json:"frames"`
	PaddedFrames  uint64 `json:"padded_frames"`
	SilentBuffers uint64 `json:"silent_buffers"`
	MissingInput  uint64 `json:"missing_input"`
	Faults        uint64 `json:"faults"`
	DroppedFrames uint64 `json:"dropped_frames"`
}

// Status is pushed periodically to every client
type Status struct {
	SessionID       string  `json:"session_id"`
	Driver          string  `json:"driver"`
	State           string  `json:"state"`
	Input           *Device `json:"input,omitempty"`
	Output          *Device `json:"output,omitempty"`
	SampleRate      float64 `json:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
	Format          string  `json:"format,omitempty"`
	FramesPerBuffer int     `json:"frames_per_buffer"`
	LatencyFrames   int     `json:"latency_frames"`
	FellBack        bool    `json:"fell_back"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Stats           Stats   `json:"stats"`
}

func newHello(serverID, name string, interval time.Duration) ServerHello {
	return ServerHello{
		ServerID:     serverID,
		Name:         name,
		Product:      version.Product,
		Manufacturer: version.Manufacturer,
		Version:      version.Version,
		IntervalMs:   interval.Milliseconds(),
	}
}

// newStatus converts a controller snapshot taken at now
func newStatus(s app.Status, now time.Time) Status {
	out := Status{
		SessionID:       s.SessionID,
		Driver:          s.Driver,
		State:           s.State.String(),
		FramesPerBuffer: s.FramesPerBuffer,
		LatencyFrames:   s.LatencyFrames,
		FellBack:        s.FellBack,
		Stats: Stats{
			Callbacks:     s.Stats.Callbacks,
			Frames:        s.Stats.Frames,
			PaddedFrames:  s.Stats.PaddedFrames,
			SilentBuffers: s.Stats.SilentBuffers,
			MissingInput:  s.Stats.MissingInput,
			Faults:        s.Stats.Faults,
			DroppedFrames: s.Stats.DroppedFrames,
		},
	}

	// Devices are unset until selection
	if s.Input.Name != "" {
		out.Input = newDevice(s.Input)
	}
	if s.Output.Name != "" {
		out.Output = newDevice(s.Output)
	}
	if s.Config.Channels > 0 {
		out.SampleRate = s.Config.SampleRate
		out.Channels = s.Config.Channels
		out.Format = s.Config.Format.String()
	}
	if !s.StartedAt.IsZero() {
		out.UptimeSeconds = now.Sub(s.StartedAt).Seconds()
	}
	return out
}

func newDevice(d audio.DeviceCapabilities) *Device {
	return &Device{ID: d.ID, Name: d.Name, HostAPI: d.HostAPI, Rate: d.DefaultSampleRate}
}
