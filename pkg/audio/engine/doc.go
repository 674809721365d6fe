// ABOUTME: Transformation engine package
// ABOUTME: Streaming submit/retrieve engines for the callback pipeline
// Package engine defines the streaming transformation contract used by the
// real-time pipeline and provides the built-in engines.
//
// An Engine accepts canonical float frames with Submit and yields whatever
// it has ready with Retrieve. Retrieve may produce fewer frames than asked
// for, including none; callers pad with silence.
//
// Built-in engines:
//   - wsola: time-domain pitch shifter (algo-dsp PitchShifter)
//   - spectral: phase-vocoder pitch shifter (algo-dsp SpectralPitchShifter)
//   - passthrough: identity, mostly for tests and latency checks
//
// Example:
//
//	eng, err := engine.New(engine.Options{Kind: engine.KindWSOLA})
//	err = eng.Configure(48000, 2)
//	err = eng.SetParams(engine.Params{Semitones: -4})
//
//	eng.Submit(in, frames)
//	n := eng.Retrieve(out, frames)
//	defer eng.Close()
package engine
