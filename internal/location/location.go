// Package location samples the device position for inclusion in alerts.
// Position fixes are polled on a slow interval and cached; a trigger always
// uses the last known fix rather than blocking the pipeline on a fresh one.
package location

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/pkg/types"
)

// Provider obtains a single position fix.
type Provider interface {
	Current(ctx context.Context) (*types.Location, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*types.Location, error)

// Current calls f.
func (f ProviderFunc) Current(ctx context.Context) (*types.Location, error) {
	return f(ctx)
}

// Static is a Provider returning a fixed position from configuration.
type Static struct {
	Loc types.Location
}

// Current returns the configured position.
func (s Static) Current(context.Context) (*types.Location, error) {
	loc := s.Loc
	return &loc, nil
}

// Command is a Provider that runs an external helper binary and parses a
// JSON object with latitude and longitude fields from its stdout.
type Command struct {
	// Path is the helper binary to run.
	Path string

	// Args are passed to the binary.
	Args []string
}

// Current runs the helper and parses its output.
func (c Command) Current(ctx context.Context) (*types.Location, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run location helper %q: %w", c.Path, err)
	}

	var loc types.Location
	if err := json.Unmarshal(out.Bytes(), &loc); err != nil {
		return nil, fmt.Errorf("parse location helper output: %w", err)
	}
	return &loc, nil
}

// Tracker polls a Provider on an interval and caches the last fix. Safe for
// concurrent use.
type Tracker struct {
	provider Provider
	interval time.Duration

	mu   sync.Mutex
	last *types.Location
}

// NewTracker creates a Tracker polling p every interval.
func NewTracker(p Provider, interval time.Duration) *Tracker {
	return &Tracker{provider: p, interval: interval}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
// Poll failures are logged and leave the cached fix untouched.
func (t *Tracker) Run(ctx context.Context) error {
	t.poll(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	loc, err := t.provider.Current(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("location poll failed", "error", err)
		return
	}
	t.mu.Lock()
	t.last = loc
	t.mu.Unlock()
}

// Last returns the most recent fix, or nil when none has been obtained.
func (t *Tracker) Last() *types.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	loc := *t.last
	return &loc
}
