// Package audio defines the microphone capture abstraction and the PCM/WAV
// helpers used by the recording layer.
//
// The two primary abstractions are:
//
//   - [Device] — opens the physical (or mocked) capture hardware.
//   - [Capture] — one live capture stream delivering raw PCM chunks until
//     closed.
//
// Implementations are provided by backend-specific packages (audio/alsa for
// real hardware, audio/mock for tests). The interfaces are intentionally
// narrow: exactly one Capture may be live per Device at a time, which is the
// physical backstop for the recording session manager's mutual-exclusion
// invariant.
package audio

import "context"

// Format describes the sample layout of a capture stream. All murmur audio is
// 16-bit signed little-endian PCM; Format carries the remaining parameters.
type Format struct {
	// SampleRate in Hz. The speech services require 16000.
	SampleRate int

	// Channels is the channel count. The speech services require mono.
	Channels int
}

// DefaultFormat is the capture format required by the transcription and
// speaker-verification services: mono, 16 kHz, 16-bit PCM.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// BytesPerSecond returns the PCM byte rate for the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Capture is one live microphone stream.
//
// Implementations must be safe for concurrent use.
type Capture interface {
	// Chunks returns the channel delivering raw PCM as it is read from the
	// device. The channel is closed when the capture ends, either via Close
	// or because the underlying device failed.
	Chunks() <-chan []byte

	// Close stops the capture and releases the device. Safe to call more
	// than once; subsequent calls are no-ops and return nil.
	Close() error
}

// Device opens microphone capture streams.
//
// Implementations must be safe for concurrent use and must reject a second
// concurrent Open while a capture is live — the device is a singleton
// physical resource.
type Device interface {
	// Open starts capturing in the given format. The supplied ctx governs
	// the lifetime of the capture: cancelling it is equivalent to calling
	// Close on the returned Capture.
	Open(ctx context.Context, format Format) (Capture, error)
}
