// ABOUTME: Stream negotiation between a capture and a render device
// ABOUTME: Picks the shared sample rate, channel count and preferred sample format
package negotiate

import (
	"math"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

const op = "negotiate"

// Preferred is the sample format tried first
const Preferred = audio.Float32

// Negotiate computes a stream configuration both devices can run.
//
// The rate is the lower of the two default rates. Each side gets stereo
// when it supports two or more channels and mono when it supports one.
// Both sides must agree on the channel count; there is no upmix or downmix.
func Negotiate(in, out audio.DeviceCapabilities) (audio.StreamConfig, error) {
	rate := math.Min(in.DefaultSampleRate, out.DefaultSampleRate)
	if !(rate > 0) {
		return audio.StreamConfig{}, audio.Errorf(audio.KindUnsupportedConfiguration, op,
			"no usable sample rate (input %.0fHz, output %.0fHz)", in.DefaultSampleRate, out.DefaultSampleRate)
	}

	inCh := ChannelsFor(in.MaxInputChannels)
	outCh := ChannelsFor(out.MaxOutputChannels)

	if inCh == 0 {
		return audio.StreamConfig{}, audio.Errorf(audio.KindUnsupportedConfiguration, op,
			"input device %q has no input channels", in.Name)
	}
	if outCh == 0 {
		return audio.StreamConfig{}, audio.Errorf(audio.KindUnsupportedConfiguration, op,
			"output device %q has no output channels", out.Name)
	}
	if inCh != outCh {
		return audio.StreamConfig{}, audio.Errorf(audio.KindUnsupportedConfiguration, op,
			"channel mismatch: input %s, output %s", audio.ChannelName(inCh), audio.ChannelName(outCh))
	}

	return audio.StreamConfig{
		SampleRate: rate,
		Channels:   inCh,
		Format:     Preferred,
	}, nil
}

// ChannelsFor maps a device channel maximum to the channel count we use
func ChannelsFor(max int) int {
	switch {
	case max >= 2:
		return 2
	case max == 1:
		return 1
	default:
		return 0
	}
}

// Fallback returns the format to retry with after f was rejected.
// There is exactly one fallback step: Float32 to Int16.
func Fallback(f audio.SampleFormat) (audio.SampleFormat, bool) {
	if f == audio.Float32 {
		return audio.Int16, true
	}
	return 0, false
}

// Latencies returns the suggested latencies for opening the stream
func Latencies(in, out audio.DeviceCapabilities) (input, output time.Duration) {
	return in.DefaultLowInputLatency, out.DefaultLowOutputLatency
}
