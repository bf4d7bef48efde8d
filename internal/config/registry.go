package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/murmur-app/murmur/pkg/provider/stt"
)

// ErrClientNotRegistered is returned by [Registry.CreateSTT] when no factory
// has been registered under the requested name.
var ErrClientNotRegistered = errors.New("config: client not registered")

// Registry maps transcription client names to constructor functions. It is
// safe for concurrent use. The other external services have exactly one
// implementation each and are constructed directly in main.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(ServiceEntry) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ServiceEntry) (stt.Provider, error)),
	}
}

// RegisterSTT registers a transcription client factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ServiceEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateSTT constructs the transcription client selected by entry.Name.
func (r *Registry) CreateSTT(entry ServiceEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrClientNotRegistered, entry.Name)
	}
	return factory(entry)
}
