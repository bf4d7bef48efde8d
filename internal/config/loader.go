package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ValidSTTNames lists the registered transcription client names. Used by
// [Validate] to reject unknown selections early.
var ValidSTTNames = []string{"azure", "whisper"}

// envOverrides are the secret values that may come from the environment
// instead of the config file, prefixed MURMUR_ (e.g. MURMUR_STT_API_KEY).
type envOverrides struct {
	STTAPIKey string `envconfig:"STT_API_KEY"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment overrides, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()

	var env envOverrides
	if err := envconfig.Process("murmur", &env); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}
	if env.STTAPIKey != "" {
		cfg.Services.STT.APIKey = env.STTAPIKey
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !slices.Contains(ValidSTTNames, cfg.Services.STT.Name) {
		errs = append(errs, fmt.Errorf("services.stt.name %q is unknown; valid values: %v", cfg.Services.STT.Name, ValidSTTNames))
	}
	if cfg.Services.STT.Endpoint == "" {
		errs = append(errs, errors.New("services.stt.endpoint is required"))
	}
	if cfg.Services.STT.Name == "azure" && cfg.Services.STT.APIKey == "" {
		errs = append(errs, errors.New("services.stt.api_key is required for the azure client (or set MURMUR_STT_API_KEY)"))
	}
	if cfg.Services.Speaker.Endpoint == "" {
		errs = append(errs, errors.New("services.speaker.endpoint is required"))
	}
	if cfg.Services.Dispatch.Endpoint == "" {
		errs = append(errs, errors.New("services.dispatch.endpoint is required"))
	}

	switch cfg.Location.Provider {
	case "static":
		if cfg.Location.Enabled && cfg.Location.Static == nil {
			errs = append(errs, errors.New("location.static is required when location.enabled with the static provider"))
		}
	case "command":
		if cfg.Location.Command == "" {
			errs = append(errs, errors.New("location.command is required for the command provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("location.provider %q is unknown; valid values: static, command", cfg.Location.Provider))
	}

	if n := len(cfg.Enrollment.Phrases); n != 3 {
		errs = append(errs, fmt.Errorf("enrollment.phrases must list exactly 3 phrases, got %d", n))
	}

	if cfg.Listen.PhoneticThreshold < 0 || cfg.Listen.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("listen.phonetic_threshold %v is out of range [0,1]", cfg.Listen.PhoneticThreshold))
	}

	return errors.Join(errs...)
}
