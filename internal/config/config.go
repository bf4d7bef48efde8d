// Package config provides the configuration schema, loader, and service
// registry for the murmur daemon.
package config

import (
	"time"

	"github.com/murmur-app/murmur/pkg/types"
)

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for murmur.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Services   ServicesConfig   `yaml:"services"`
	Audio      AudioConfig      `yaml:"audio"`
	Storage    StorageConfig    `yaml:"storage"`
	Listen     ListenConfig     `yaml:"listen"`
	Background BackgroundConfig `yaml:"background"`
	Location   LocationConfig   `yaml:"location"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
}

// ServerConfig holds the control API and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the control API listens on (e.g. ":8787").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ServiceEntry is the common configuration block shared by the external
// services. Name selects the registered implementation where more than one
// exists (currently only STT has alternatives).
type ServiceEntry struct {
	// Name selects the registered client implementation (e.g. "azure",
	// "whisper" for STT).
	Name string `yaml:"name"`

	// Endpoint is the service URL. For azure STT this is the full
	// recognition endpoint; for the other services it is the base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the service, where required. For STT it
	// can be overridden with the MURMUR_STT_API_KEY environment variable so
	// the key need not live in the config file.
	APIKey string `yaml:"api_key"`

	// Language is a BCP-47 language hint for recognition (e.g. "en-US").
	Language string `yaml:"language"`

	// Model selects a specific model where the service supports it.
	Model string `yaml:"model"`
}

// ServicesConfig declares the external collaborators of the detection loop.
type ServicesConfig struct {
	// STT is the speech transcription service.
	STT ServiceEntry `yaml:"stt"`

	// Speaker is the speaker-verification service (enrollment + verify).
	Speaker ServiceEntry `yaml:"speaker"`

	// Dispatch is the contact-notification service.
	Dispatch ServiceEntry `yaml:"dispatch"`

	// Uplink is the optional websocket audio mirror. Empty endpoint
	// disables it.
	Uplink ServiceEntry `yaml:"uplink"`
}

// AudioConfig holds capture-device settings.
type AudioConfig struct {
	// Device is the ALSA capture device (e.g. "default:CARD=Generic_1").
	// Empty selects the system default.
	Device string `yaml:"device"`

	// ClipsDir is the directory where finalised WAV clips are written.
	ClipsDir string `yaml:"clips_dir"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file holding safe words, the voice-print
	// reference, and contacts.
	Path string `yaml:"path"`
}

// ListenConfig tunes the active listening loop.
type ListenConfig struct {
	// SegmentDuration is the fixed wall-clock window of one listening
	// segment. Default 5s.
	SegmentDuration time.Duration `yaml:"segment_duration"`

	// PhoneticMatch enables metaphone-based tolerance when the exact
	// substring test fails, catching STT misspellings of the safe word.
	// Default off; exact matching is always tried first.
	PhoneticMatch bool `yaml:"phonetic_match"`

	// PhoneticThreshold is the minimum Jaro-Winkler score for a phonetic
	// candidate to count as a match. Default 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// BackgroundConfig tunes the OS-scheduler-style background variant.
type BackgroundConfig struct {
	// MinimumInterval is the re-invocation interval of the background
	// segment job. Default 15m, matching the platform scheduler floor the
	// mobile client was built against.
	MinimumInterval time.Duration `yaml:"minimum_interval"`
}

// LocationConfig tunes location tracking.
type LocationConfig struct {
	// Enabled turns tracking on. When off, alerts carry a null location.
	Enabled bool `yaml:"enabled"`

	// PollInterval is how often the position is re-sampled. Default 30m.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Provider selects the fix source: "static" or "command".
	Provider string `yaml:"provider"`

	// Static is the fixed position reported by the static provider.
	Static *types.Location `yaml:"static"`

	// Command is an executable printing a JSON object with latitude and
	// longitude on stdout, used by the command provider (e.g. a GPS helper).
	Command string `yaml:"command"`
}

// EnrollmentConfig holds the voice-print enrollment phrase set.
type EnrollmentConfig struct {
	// Phrases are the three prompts the user reads during enrollment.
	// Exactly three are required; defaults are applied when empty.
	Phrases []string `yaml:"phrases"`
}

// DefaultEnrollmentPhrases are used when the config does not override them.
var DefaultEnrollmentPhrases = []string{
	"My voice is my passport, verify me today",
	"The quick brown fox jumps over the lazy dog",
	"I am enrolling my voice print for murmur",
}

// applyDefaults fills zero-valued tunables in place.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8787"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Services.STT.Name == "" {
		c.Services.STT.Name = "azure"
	}
	if c.Audio.ClipsDir == "" {
		c.Audio.ClipsDir = "clips"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "murmur.db"
	}
	if c.Listen.SegmentDuration <= 0 {
		c.Listen.SegmentDuration = 5 * time.Second
	}
	if c.Listen.PhoneticThreshold <= 0 {
		c.Listen.PhoneticThreshold = 0.70
	}
	if c.Background.MinimumInterval <= 0 {
		c.Background.MinimumInterval = 15 * time.Minute
	}
	if c.Location.PollInterval <= 0 {
		c.Location.PollInterval = 30 * time.Minute
	}
	if c.Location.Provider == "" {
		c.Location.Provider = "static"
	}
	if len(c.Enrollment.Phrases) == 0 {
		c.Enrollment.Phrases = append([]string(nil), DefaultEnrollmentPhrases...)
	}
}
