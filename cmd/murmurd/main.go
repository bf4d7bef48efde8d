// Command murmurd is the safe-word listening daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/murmur-app/murmur/internal/app"
	"github.com/murmur-app/murmur/internal/config"
	"github.com/murmur-app/murmur/internal/location"
	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/resilience"
	"github.com/murmur-app/murmur/pkg/audio/alsa"
	"github.com/murmur-app/murmur/pkg/provider/notify"
	"github.com/murmur-app/murmur/pkg/provider/speaker"
	"github.com/murmur-app/murmur/pkg/provider/stt"
	"github.com/murmur-app/murmur/pkg/provider/stt/azure"
	"github.com/murmur-app/murmur/pkg/provider/stt/whisper"
	"github.com/murmur-app/murmur/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "murmurd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "murmurd: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("murmurd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "murmurd",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinClients(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build service clients", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinClients wires the transcription client factories into reg.
func registerBuiltinClients(reg *config.Registry) {
	reg.RegisterSTT("azure", func(entry config.ServiceEntry) (stt.Provider, error) {
		var opts []azure.Option
		if entry.Language != "" {
			opts = append(opts, azure.WithLanguage(entry.Language))
		}
		return azure.New(entry.Endpoint, entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ServiceEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.Endpoint, opts...)
	})
}

// buildProviders constructs every external client from the config and wraps
// the hot-path ones in circuit breakers.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	sttClient, err := reg.CreateSTT(cfg.Services.STT)
	if err != nil {
		return nil, fmt.Errorf("stt client: %w", err)
	}

	speakerClient, err := speaker.New(cfg.Services.Speaker.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("speaker client: %w", err)
	}

	dispatcher, err := notify.New(cfg.Services.Dispatch.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("dispatch client: %w", err)
	}

	var deviceOpts []alsa.Option
	if cfg.Audio.Device != "" {
		deviceOpts = append(deviceOpts, alsa.WithALSADevice(cfg.Audio.Device))
	}

	providers := &app.Providers{
		STT:         resilience.NewGuardedSTT(sttClient, resilience.CircuitBreakerConfig{Name: "stt"}),
		Speaker:     resilience.NewGuardedSpeaker(speakerClient, resilience.CircuitBreakerConfig{Name: "speaker"}),
		Dispatcher:  dispatcher,
		Device:      alsa.New(deviceOpts...),
		Maintenance: speakerClient,
	}

	if cfg.Location.Enabled {
		loc, err := buildLocationProvider(cfg.Location)
		if err != nil {
			return nil, err
		}
		providers.Location = loc
	}

	return providers, nil
}

// buildLocationProvider selects the configured position source.
func buildLocationProvider(cfg config.LocationConfig) (location.Provider, error) {
	switch cfg.Provider {
	case "static":
		loc := types.Location{}
		if cfg.Static != nil {
			loc = *cfg.Static
		}
		return location.Static{Loc: loc}, nil
	case "command":
		return location.Command{Path: cfg.Command}, nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
	}
}

// newLogger builds the default slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
