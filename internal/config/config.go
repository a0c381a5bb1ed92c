// Package config provides configuration management for decody.
package config

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// Defaults.
const (
	DefaultPort                 = 5001
	DefaultModel                = "gemini-1.5-flash"
	DefaultAdviceTimeoutSeconds = 30
	DefaultMatchWorkers         = 8
)

// Config holds runtime settings for the service and the importer.
type Config struct {
	Port                 int    `json:"DECODY_PORT"`
	DBPath               string `json:"DECODY_DB_PATH"`
	RedisAddr            string `json:"DECODY_REDIS_ADDR"`
	GeminiModel          string `json:"DECODY_GEMINI_MODEL"`
	AdviceTimeoutSeconds int    `json:"DECODY_ADVICE_TIMEOUT_SECONDS"`
	MatchWorkers         int    `json:"DECODY_MATCH_WORKERS"`
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// DataDir returns the decody data directory (~/.decody).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".decody")
}

// DBPath returns the default rule database path.
func DBPath() string {
	return filepath.Join(DataDir(), "decody.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:                 DefaultPort,
		DBPath:               DBPath(),
		GeminiModel:          DefaultModel,
		AdviceTimeoutSeconds: DefaultAdviceTimeoutSeconds,
		MatchWorkers:         DefaultMatchWorkers,
	}
}

// Load reads the settings file and overlays it on the defaults.
// A missing or unparseable settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return Default(), nil
	}

	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DBPath()
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = DefaultModel
	}
	if cfg.AdviceTimeoutSeconds <= 0 {
		cfg.AdviceTimeoutSeconds = DefaultAdviceTimeoutSeconds
	}
	if cfg.MatchWorkers <= 0 {
		cfg.MatchWorkers = DefaultMatchWorkers
	}
	return cfg, nil
}

// Get returns the cached configuration, loading it on first use.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()

	if cached == nil {
		cached, _ = Load()
	}
	return cached
}

// APIKey returns the Gemini API key from the environment.
func APIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}
