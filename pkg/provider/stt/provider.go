// Package stt defines the speech-to-text provider interface used by the
// capture controller and the listening loop.
//
// Providers are batch transcribers: the recording layer produces complete WAV
// clips (one per manual capture or listening segment), and each clip is
// submitted as a single inference request. Implementations live in
// subpackages (stt/azure, stt/whisper) and are selected by name through the
// config registry.
package stt

import "context"

// Provider transcribes a complete WAV clip.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe submits wav (mono, 16 kHz, 16-bit PCM in a RIFF container)
	// and returns the recognised text. A clip the service could not
	// recognise yields an empty string and a nil error; a transport or
	// protocol failure yields a non-nil error. Callers treat both the same
	// way — no detection for this clip — but errors are logged.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}
