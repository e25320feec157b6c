// Package config loads chatcart configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chatcart configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Identity IdentityConfig `yaml:"identity"`
	Storage  StorageConfig  `yaml:"storage"`
	Chat     ChatConfig     `yaml:"chat"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the local presentation API.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	ReadTimeout   string `yaml:"read_timeout"`
	WriteTimeout  string `yaml:"write_timeout"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// BackendConfig configures the storefront backend client.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// IdentityConfig selects where the bearer token comes from.
// TokenFile wins over Token when both are set.
type IdentityConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// StorageConfig configures persistence. An empty Path keeps everything in memory.
type StorageConfig struct {
	Path       string `yaml:"path"`
	SessionTTL string `yaml:"session_ttl"`
}

// ChatConfig configures the conversation.
type ChatConfig struct {
	Greeting string `yaml:"greeting"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			ReadTimeout:   "15s",
			WriteTimeout:  "120s",
			AllowedOrigin: "*",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: "60s",
		},
		Storage: StorageConfig{
			Path:       defaultDataPath(),
			SessionTTL: "24h",
		},
		Chat: ChatConfig{
			Greeting: "Hello! How can I help you today?",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "chatcart")
}

// Load loads configuration from a YAML file. A missing file (or an empty
// path) yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHATCART_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CHATCART_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("CHATCART_TOKEN"); v != "" {
		c.Identity.Token = v
	}
	if v := os.Getenv("CHATCART_TOKEN_FILE"); v != "" {
		c.Identity.TokenFile = v
	}
	// CHATCART_DATA may be set to the empty string to force in-memory storage.
	if v, ok := os.LookupEnv("CHATCART_DATA"); ok {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHATCART_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base_url: %q", c.Backend.BaseURL)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}

// GetBackendTimeout returns the backend timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout, 60*time.Second)
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 120*time.Second)
}

// GetSessionTTL returns how long an idle session scope is kept.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Storage.SessionTTL, 24*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
