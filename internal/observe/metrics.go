// ABOUTME: Observable counters over the pipeline statistics
// ABOUTME: Reads a stats snapshot on each collection instead of instrumenting the callback
package observe

import (
	"context"
	"errors"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of all passthrough metrics
const meterName = "github.com/Resonate-Protocol/resonate-pitch"

// StatsSource is polled on every collection. The controller implements it.
type StatsSource interface {
	Stats() pipeline.Stats
}

// Metrics holds the registered instruments
type Metrics struct {
	Callbacks     metric.Int64ObservableCounter
	Frames        metric.Int64ObservableCounter
	PaddedFrames  metric.Int64ObservableCounter
	SilentBuffers metric.Int64ObservableCounter
	MissingInput  metric.Int64ObservableCounter
	Faults        metric.Int64ObservableCounter
	DroppedFrames metric.Int64ObservableCounter

	registration metric.Registration
}

// NewMetrics registers the instruments on mp and a callback reading src.
// attrs are attached to every observation.
func NewMetrics(mp metric.MeterProvider, src StatsSource, attrs ...attribute.KeyValue) (*Metrics, error) {
	if src == nil {
		return nil, errors.New("observe: nil stats source")
	}

	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64ObservableCounter
		name string
		desc string
		unit string
	}{
		{&met.Callbacks, "resonate_pitch.callbacks", "Audio callbacks handled.", ""},
		{&met.Frames, "resonate_pitch.frames", "Frames written to the output device.", "{frame}"},
		{&met.PaddedFrames, "resonate_pitch.padded_frames", "Output frames zero-filled because the engine had too little ready.", "{frame}"},
		{&met.SilentBuffers, "resonate_pitch.silent_buffers", "Callbacks whose whole output was silence.", ""},
		{&met.MissingInput, "resonate_pitch.missing_input", "Callbacks delivered without input samples.", ""},
		{&met.Faults, "resonate_pitch.faults", "Callbacks that recovered from a fault.", ""},
		{&met.DroppedFrames, "resonate_pitch.dropped_frames", "Frames the engine discarded because an internal queue was full.", "{frame}"},
	}

	observables := make([]metric.Observable, 0, len(counters))
	for _, c := range counters {
		opts := []metric.Int64ObservableCounterOption{metric.WithDescription(c.desc)}
		if c.unit != "" {
			opts = append(opts, metric.WithUnit(c.unit))
		}
		if *c.dst, err = m.Int64ObservableCounter(c.name, opts...); err != nil {
			return nil, err
		}
		observables = append(observables, *c.dst)
	}

	set := metric.WithAttributes(attrs...)
	met.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := src.Stats()
		o.ObserveInt64(met.Callbacks, int64(s.Callbacks), set)
		o.ObserveInt64(met.Frames, int64(s.Frames), set)
		o.ObserveInt64(met.PaddedFrames, int64(s.PaddedFrames), set)
		o.ObserveInt64(met.SilentBuffers, int64(s.SilentBuffers), set)
		o.ObserveInt64(met.MissingInput, int64(s.MissingInput), set)
		o.ObserveInt64(met.Faults, int64(s.Faults), set)
		o.ObserveInt64(met.DroppedFrames, int64(s.DroppedFrames), set)
		return nil
	}, observables...)
	if err != nil {
		return nil, err
	}

	return met, nil
}

// Close stops observing the source
func (m *Metrics) Close() error {
	return m.registration.Unregister()
}
