// Package coordinator owns the listening state. Every transition between
// "listening" and "not listening" goes through the Coordinator, which makes
// it the single place where the enable preconditions are checked, the
// background task is registered, and the audio uplink is opened.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/murmur-app/murmur/internal/listen"
	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/scheduler"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/types"
)

// ErrPrecondition is returned by Enable when the setup is incomplete. The
// wrapped message names what is missing.
var ErrPrecondition = errors.New("coordinator: listening preconditions not met")

// MirrorConn is a live uplink connection.
type MirrorConn interface {
	Send(clip []byte) error
	Close() error
}

// Dialer opens a new uplink connection.
type Dialer func(ctx context.Context) (MirrorConn, error)

// MirrorSwitch is a [listen.Mirror] whose backing connection can be swapped
// at runtime. With no connection installed, Send is a silent no-op. Wire the
// switch into the pipeline and hand the same switch to the Coordinator,
// which installs a connection on Enable and drops it on Disable.
type MirrorSwitch struct {
	mu   sync.Mutex
	conn MirrorConn
}

// Compile-time assertion that MirrorSwitch implements listen.Mirror.
var _ listen.Mirror = (*MirrorSwitch)(nil)

// Send forwards the clip to the current connection, if any.
func (s *MirrorSwitch) Send(clip []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Send(clip)
}

func (s *MirrorSwitch) set(conn MirrorConn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *MirrorSwitch) drop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithUplink makes Enable dial an uplink connection through dialer and
// install it into sw. Dial failures are logged; listening proceeds without
// the mirror.
func WithUplink(dialer Dialer, sw *MirrorSwitch) Option {
	return func(c *Coordinator) {
		c.dial = dialer
		c.mirror = sw
	}
}

// WithMetrics sets the metrics instance used for the listening gauge.
func WithMetrics(met *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = met }
}

// Coordinator is the sole owner of the listening state. Safe for concurrent
// use.
type Coordinator struct {
	store    *store.Store
	rec      *record.Manager
	pipeline *listen.Pipeline
	sched    *scheduler.Scheduler
	metrics  *observe.Metrics

	dial   Dialer
	mirror *MirrorSwitch

	runCtx context.Context

	mu      sync.Mutex
	enabled bool
	gen     uint64
}

// New creates a Coordinator. runCtx bounds the lifetime of the foreground
// loop goroutines it spawns; cancel it on shutdown.
func New(runCtx context.Context, st *store.Store, rec *record.Manager, p *listen.Pipeline, sched *scheduler.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    st,
		rec:      rec,
		pipeline: p,
		sched:    sched,
		runCtx:   runCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Enable turns listening on. It verifies the preconditions, discards any
// in-flight manual recording, opens the uplink, registers the background
// task, and starts the foreground loop. Enabling while already enabled is a
// no-op.
func (c *Coordinator) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		return nil
	}

	if err := c.checkPreconditions(ctx); err != nil {
		return err
	}

	if c.rec.Discard(ctx) {
		observe.Logger(ctx).Info("in-flight recording discarded for listening")
	}

	if c.dial != nil {
		conn, err := c.dial(ctx)
		if err != nil {
			c.metrics.RecordServiceError(ctx, "uplink", "dial")
			observe.Logger(ctx).Warn("uplink unavailable, listening without mirror",
				"error", err)
		} else {
			c.mirror.set(conn)
		}
	}

	if err := c.sched.Register(func(jobCtx context.Context) {
		c.pipeline.RunBackgroundSegment(jobCtx)
	}); err != nil {
		observe.Logger(ctx).Warn("background task registration failed",
			"error", err)
	}

	c.enabled = true
	c.gen++
	c.metrics.ListeningActive.Add(ctx, 1)
	observe.Logger(ctx).Info("listening enabled")

	// The loop is bound to this enable generation: after a disable/enable
	// cycle a stale loop sees a newer generation and exits instead of
	// running alongside the replacement.
	gen := c.gen
	go c.pipeline.RunForeground(c.runCtx, func() bool {
		return c.enabledGeneration(gen)
	})
	return nil
}

// enabledGeneration reports whether listening is enabled and gen is still the
// current enable generation.
func (c *Coordinator) enabledGeneration(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && c.gen == gen
}

// checkPreconditions verifies that both safe words are usable, a voice print
// is enrolled, and at least one contact carries a priority.
func (c *Coordinator) checkPreconditions(ctx context.Context) error {
	var missing []string

	for _, slot := range types.Slots() {
		sw, err := c.store.SafeWord(ctx, slot)
		switch {
		case errors.Is(err, store.ErrNotFound):
			missing = append(missing, string(slot)+" safe word")
		case err != nil:
			return err
		case !sw.Usable():
			missing = append(missing, string(slot)+" safe word")
		}
	}

	if _, err := c.store.VoicePrint(ctx); errors.Is(err, store.ErrNotFound) {
		missing = append(missing, "voice print")
	} else if err != nil {
		return err
	}

	has, err := c.store.HasPrioritizedContact(ctx)
	if err != nil {
		return err
	}
	if !has {
		missing = append(missing, "prioritized contact")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPrecondition, strings.Join(missing, ", "))
	}
	return nil
}

// Disable turns listening off. It always succeeds: the background task is
// unregistered, the uplink is dropped, and the foreground loop exits after
// its current segment completes.
func (c *Coordinator) Disable(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	c.enabled = false

	c.sched.Unregister()
	if c.mirror != nil {
		c.mirror.drop()
	}
	c.metrics.ListeningActive.Add(ctx, -1)
	observe.Logger(ctx).Info("listening disabled")
}

// IsEnabled reports the current listening state.
func (c *Coordinator) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}
