// ABOUTME: Audio driver package
// ABOUTME: Duplex stream backends behind one interface
// Package driver provides the audio I/O backends.
//
// A Driver enumerates devices and opens duplex streams. An opened Stream
// calls a Callback on the backend's real-time thread once per buffer period
// with captured input and a render buffer to fill.
//
// Supported backends:
//   - malgo: miniaudio duplex device, byte callback (default)
//   - portaudio: PortAudio duplex stream, typed callback (build with -tags portaudio)
//   - oto: render only, with a generated test tone as input
//
// Example:
//
//	drv, err := driver.New("malgo")
//	err = drv.Initialize()
//	defer drv.Terminate()
//
//	devs, err := drv.Devices()
//	stream, err := drv.Open(params, pipeline)
//	err = stream.Start()
package driver
