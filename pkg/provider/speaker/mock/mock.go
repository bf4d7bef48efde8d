// Package mock provides a test double for the speaker.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/murmur-app/murmur/pkg/provider/speaker"
)

// Provider is a mock implementation of speaker.Provider. Set the Result and
// Err fields to script behaviour; inspect the Call slices afterwards.
type Provider struct {
	mu sync.Mutex

	// VectorRef is returned by Enroll when EnrollErr is nil.
	VectorRef string

	// EnrollErr, if non-nil, is returned as the error from Enroll.
	EnrollErr error

	// Verified is returned by Verify when VerifyErr is nil.
	Verified bool

	// VerifyFn, if non-nil, computes the Verify result per call. Overrides
	// Verified and VerifyErr.
	VerifyFn func(call int, wav []byte) (bool, error)

	// VerifyErr, if non-nil, is returned as the error from Verify.
	VerifyErr error

	// EnrollCalls records the clip triples passed to Enroll.
	EnrollCalls [][3][]byte

	// VerifyCalls records the clips passed to Verify.
	VerifyCalls [][]byte
}

// Ensure Provider implements speaker.Provider at compile time.
var _ speaker.Provider = (*Provider)(nil)

// Enroll records the call and returns the scripted result.
func (p *Provider) Enroll(_ context.Context, clips [3][]byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EnrollCalls = append(p.EnrollCalls, clips)
	if p.EnrollErr != nil {
		return "", p.EnrollErr
	}
	return p.VectorRef, nil
}

// Verify records the call and returns the scripted result.
func (p *Provider) Verify(_ context.Context, wav []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.VerifyCalls)
	p.VerifyCalls = append(p.VerifyCalls, wav)
	if p.VerifyFn != nil {
		return p.VerifyFn(call, wav)
	}
	if p.VerifyErr != nil {
		return false, p.VerifyErr
	}
	return p.Verified, nil
}

// VerifyCount returns the number of recorded Verify calls. Thread-safe.
func (p *Provider) VerifyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.VerifyCalls)
}
