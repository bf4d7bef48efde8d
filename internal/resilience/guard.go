package resilience

import (
	"context"

	"github.com/murmur-app/murmur/pkg/provider/speaker"
	"github.com/murmur-app/murmur/pkg/provider/stt"
)

// GuardedSTT wraps an stt.Provider with a circuit breaker.
type GuardedSTT struct {
	inner   stt.Provider
	breaker *CircuitBreaker
}

// Compile-time assertion that GuardedSTT implements stt.Provider.
var _ stt.Provider = (*GuardedSTT)(nil)

// NewGuardedSTT wraps p with a breaker. A zero cfg gets the breaker defaults;
// cfg.Name defaults to "stt".
func NewGuardedSTT(p stt.Provider, cfg CircuitBreakerConfig) *GuardedSTT {
	if cfg.Name == "" {
		cfg.Name = "stt"
	}
	return &GuardedSTT{inner: p, breaker: NewCircuitBreaker(cfg)}
}

// Transcribe forwards to the wrapped provider through the breaker.
func (g *GuardedSTT) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var text string
	err := g.breaker.Execute(func() error {
		var err error
		text, err = g.inner.Transcribe(ctx, wav)
		return err
	})
	return text, err
}

// GuardedSpeaker wraps a speaker.Provider with a circuit breaker. Only
// Verify runs through the breaker: enrollment is a rare, user-driven action
// whose failure is already surfaced directly.
type GuardedSpeaker struct {
	inner   speaker.Provider
	breaker *CircuitBreaker
}

// Compile-time assertion that GuardedSpeaker implements speaker.Provider.
var _ speaker.Provider = (*GuardedSpeaker)(nil)

// NewGuardedSpeaker wraps p with a breaker. cfg.Name defaults to "speaker".
func NewGuardedSpeaker(p speaker.Provider, cfg CircuitBreakerConfig) *GuardedSpeaker {
	if cfg.Name == "" {
		cfg.Name = "speaker"
	}
	return &GuardedSpeaker{inner: p, breaker: NewCircuitBreaker(cfg)}
}

// Enroll forwards directly to the wrapped provider.
func (g *GuardedSpeaker) Enroll(ctx context.Context, clips [3][]byte) (string, error) {
	return g.inner.Enroll(ctx, clips)
}

// Verify forwards to the wrapped provider through the breaker.
func (g *GuardedSpeaker) Verify(ctx context.Context, wav []byte) (bool, error) {
	var ok bool
	err := g.breaker.Execute(func() error {
		var err error
		ok, err = g.inner.Verify(ctx, wav)
		return err
	})
	return ok, err
}
