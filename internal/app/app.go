// Package app wires all murmur subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options. When an
// option is not provided, New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/murmur-app/murmur/internal/api"
	"github.com/murmur-app/murmur/internal/capture"
	"github.com/murmur-app/murmur/internal/config"
	"github.com/murmur-app/murmur/internal/coordinator"
	"github.com/murmur-app/murmur/internal/enroll"
	"github.com/murmur-app/murmur/internal/health"
	"github.com/murmur-app/murmur/internal/listen"
	"github.com/murmur-app/murmur/internal/location"
	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/scheduler"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/audio"
	"github.com/murmur-app/murmur/pkg/provider/notify"
	"github.com/murmur-app/murmur/pkg/provider/speaker"
	"github.com/murmur-app/murmur/pkg/provider/stream"
	"github.com/murmur-app/murmur/pkg/provider/stt"
)

// Maintenance is implemented by speaker clients that can pre-load and unload
// their server-side models.
type Maintenance interface {
	LoadModels(ctx context.Context) error
	UnloadModels(ctx context.Context) error
}

// Providers holds one value per external dependency slot. Populated by
// main.go via the config registry; tests inject mocks.
type Providers struct {
	STT        stt.Provider
	Speaker    speaker.Provider
	Dispatcher notify.Dispatcher
	Device     audio.Device

	// Location is optional; nil disables location tracking.
	Location location.Provider

	// Maintenance is optional; when set, models are loaded on Run and
	// unloaded on Shutdown.
	Maintenance Maintenance
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	store    *store.Store
	rec      *record.Manager
	enroll   *enroll.Controller
	capture  *capture.Controller
	pipeline *listen.Pipeline
	coord    *coordinator.Coordinator
	sched    *scheduler.Scheduler
	tracker  *location.Tracker
	server   *http.Server

	runCtx    context.Context
	runCancel context.CancelFunc

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of opening one from config.
func WithStore(st *store.Store) Option {
	return func(a *App) { a.store = st }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(met *observe.Metrics) Option {
	return func(a *App) { a.metrics = met }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.runCtx, a.runCancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := a.initStore(); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initRecording()
	a.initPipeline()
	a.initControllers()
	a.initServer()

	return a, nil
}

// initStore opens the SQLite store unless one was injected.
func (a *App) initStore() error {
	if a.store != nil {
		return nil
	}
	st, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	return nil
}

// initRecording builds the recording session manager.
func (a *App) initRecording() {
	a.rec = record.NewManager(a.providers.Device, a.cfg.Audio.ClipsDir,
		record.WithMetrics(a.metrics))
}

// initPipeline assembles the segment pipeline, the uplink mirror, the
// location tracker, the scheduler, and the coordinator.
func (a *App) initPipeline() {
	if a.providers.Location != nil && a.cfg.Location.Enabled {
		a.tracker = location.NewTracker(a.providers.Location, a.cfg.Location.PollInterval)
	}

	listenOpts := []listen.Option{
		listen.WithSegmentDuration(a.cfg.Listen.SegmentDuration),
		listen.WithMetrics(a.metrics),
	}
	if a.cfg.Listen.PhoneticMatch {
		listenOpts = append(listenOpts, listen.WithPhoneticMatch(a.cfg.Listen.PhoneticThreshold))
	}
	if a.tracker != nil {
		listenOpts = append(listenOpts, listen.WithLocationSource(a.tracker))
	}

	var coordOpts []coordinator.Option
	coordOpts = append(coordOpts, coordinator.WithMetrics(a.metrics))
	if url := a.cfg.Services.Uplink.Endpoint; url != "" {
		sw := &coordinator.MirrorSwitch{}
		dial := func(ctx context.Context) (coordinator.MirrorConn, error) {
			return stream.Dial(ctx, url)
		}
		coordOpts = append(coordOpts, coordinator.WithUplink(dial, sw))
		listenOpts = append(listenOpts, listen.WithMirror(sw))
	}

	a.pipeline = listen.NewPipeline(a.rec, a.providers.STT, a.providers.Speaker,
		a.providers.Dispatcher, a.store, listenOpts...)

	a.sched = scheduler.New(a.cfg.Background.MinimumInterval)
	a.coord = coordinator.New(a.runCtx, a.store, a.rec, a.pipeline, a.sched, coordOpts...)
}

// initControllers builds the enrollment and capture controllers.
func (a *App) initControllers() {
	var phrases [enroll.PhraseCount]string
	copy(phrases[:], a.cfg.Enrollment.Phrases)
	a.enroll = enroll.NewController(a.rec, a.providers.Speaker, a.store, a.coord, phrases)
	a.capture = capture.NewController(a.rec, a.providers.STT, a.store, a.coord)
}

// initServer builds the control API HTTP server.
func (a *App) initServer() {
	checkers := []health.Checker{health.StoreChecker(a.store)}
	if url := a.cfg.Services.Speaker.Endpoint; url != "" {
		checkers = append(checkers, health.ServiceChecker("speaker", url))
	}

	srv := api.New(a.coord, a.capture, a.enroll, a.store, a.rec,
		health.New(checkers...), a.metrics)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves the control API and the background machinery until ctx is
// cancelled, then returns ctx's error.
func (a *App) Run(ctx context.Context) error {
	if a.providers.Maintenance != nil {
		if err := a.providers.Maintenance.LoadModels(ctx); err != nil {
			a.metrics.RecordServiceError(ctx, "speaker", "load_models")
			observe.Logger(ctx).Warn("speaker model preload failed", "error", err)
		}
	}

	a.sched.Start(a.runCtx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		observe.Logger(gctx).Info("control API listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.tracker != nil {
		g.Go(func() error {
			if err := a.tracker.Run(gctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		observe.Logger(ctx).Info("shutting down")

		a.coord.Disable(ctx)
		a.runCancel()

		if err := a.sched.Stop(ctx); err != nil {
			observe.Logger(ctx).Warn("scheduler stop error", "error", err)
		}

		if a.providers.Maintenance != nil {
			if err := a.providers.Maintenance.UnloadModels(ctx); err != nil {
				observe.Logger(ctx).Warn("speaker model unload failed", "error", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				observe.Logger(ctx).Warn("shutdown deadline exceeded",
					"remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				observe.Logger(ctx).Warn("closer error", "index", i, "error", err)
			}
		}

		observe.Logger(ctx).Info("shutdown complete")
	})
	return shutdownErr
}
