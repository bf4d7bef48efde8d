// Package mock provides a test double for the stt.Provider interface.
//
// Set Text or Err to script the result; inspect Calls afterwards.
package mock

import (
	"context"
	"sync"

	"github.com/murmur-app/murmur/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// WAV is the clip that was submitted.
	WAV []byte
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err and TextFn are unset.
	Text string

	// TextFn, if non-nil, computes the result per call (call index is
	// zero-based). Overrides Text.
	TextFn func(call int, wav []byte) (string, error)

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(_ context.Context, wav []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.Calls)
	p.Calls = append(p.Calls, TranscribeCall{WAV: wav})
	if p.TextFn != nil {
		return p.TextFn(call, wav)
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
