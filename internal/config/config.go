package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wppdesk/config.toml.
type Config struct {
	DefaultSession string              `toml:"default_session"`
	Sync           SyncConfig          `toml:"sync"`
	Transcription  TranscriptionConfig `toml:"transcription"`
	HTTP           HTTPConfig          `toml:"http"`
	QR             QRConfig            `toml:"qr"`
}

// SyncConfig controls how protocol events are reconciled into the store.
type SyncConfig struct {
	// DropUnnamedChats discards history-snapshot chats without a display name.
	DropUnnamedChats bool `toml:"drop_unnamed_chats"`
	// DropUnsupportedMessages discards live messages carrying neither text nor audio.
	DropUnsupportedMessages bool `toml:"drop_unsupported_messages"`
	DownloadAudio           bool `toml:"download_audio"`
	EnrichWorkers           int  `toml:"enrich_workers"`
}

// TranscriptionConfig selects the speech-to-text backend.
type TranscriptionConfig struct {
	// Provider is "openai" or empty to disable transcription.
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	Language  string `toml:"language"`
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"`
}

// HTTPConfig configures the audio/WebSocket listener. An empty Listen disables it.
type HTTPConfig struct {
	Listen string `toml:"listen"`
	// AllowedOrigins lists browser origins allowed to call the gateway, e.g. a web renderer
	// served from another port. Empty means same-origin only.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// QRConfig controls how pairing codes are surfaced besides the UI notification.
type QRConfig struct {
	PrintTerminal bool `toml:"print_terminal"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Sync: SyncConfig{
			DropUnnamedChats:        true,
			DropUnsupportedMessages: true,
			DownloadAudio:           true,
			EnrichWorkers:           4,
		},
		Transcription: TranscriptionConfig{
			Provider:  "openai",
			Model:     "whisper-1",
			Language:  "es",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		HTTP: HTTPConfig{Listen: "127.0.0.1:7777"},
		QR:   QRConfig{PrintTerminal: true},
	}
}

// Load reads config from the given path on top of Default. Returns an error if the file
// is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Sync.EnrichWorkers < 1 {
		return fmt.Errorf("sync.enrich_workers must be at least 1, got %d", c.Sync.EnrichWorkers)
	}
	switch c.Transcription.Provider {
	case "", "openai":
	default:
		return fmt.Errorf("unknown transcription.provider %q", c.Transcription.Provider)
	}
	return nil
}

// APIKey returns the transcription key from the configured environment variable.
func (t TranscriptionConfig) APIKey() string {
	if t.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(t.APIKeyEnv)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
