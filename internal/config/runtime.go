// Package config provides centralized configuration for Couponvault runtime values.
//
// Values are layered: built-in defaults, then the optional YAML file at
// $XDG_CONFIG_HOME/couponvault/config.yaml, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG config, data and state directories.
const AppName = "couponvault"

// RuntimeConfig holds all tunable runtime values.
type RuntimeConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	HTTP       HTTPConfig       `yaml:"http"`
	RetryQueue RetryQueueConfig `yaml:"retry_queue"`
	Vision     VisionConfig     `yaml:"vision"`
	Server     ServerConfig     `yaml:"server"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Log        LogConfig        `yaml:"log"`
}

// StorageConfig holds storage-related configuration.
type StorageConfig struct {
	// Path of the Badger directory. Empty uses $XDG_DATA_HOME/couponvault/db.
	Path                string        `yaml:"path" env:"COUPONVAULT_DB_PATH"`
	MinFreeSpace        uint64        `yaml:"min_free_space" env:"COUPONVAULT_MIN_FREE_SPACE"`
	MinFreeSpaceWarning uint64        `yaml:"min_free_space_warning" env:"COUPONVAULT_MIN_FREE_SPACE_WARNING"`
	LockTimeout         time.Duration `yaml:"lock_timeout" env:"COUPONVAULT_LOCK_TIMEOUT"`
}

// HTTPConfig configures outbound webhook delivery.
type HTTPConfig struct {
	Timeout     time.Duration   `yaml:"timeout" env:"COUPONVAULT_HTTP_TIMEOUT"`
	MaxRetries  int             `yaml:"max_retries" env:"COUPONVAULT_HTTP_MAX_RETRIES"`
	RetryDelays []time.Duration `yaml:"retry_delays" env:"COUPONVAULT_HTTP_RETRY_DELAYS" envSeparator:","`
}

// RetryQueueConfig holds retry queue configuration.
type RetryQueueConfig struct {
	CheckInterval   time.Duration   `yaml:"check_interval" env:"COUPONVAULT_RETRY_QUEUE_INTERVAL"`
	BackoffSchedule []time.Duration `yaml:"backoff" env:"COUPONVAULT_RETRY_QUEUE_BACKOFF" envSeparator:","`
}

// VisionConfig configures the image-analysis client.
type VisionConfig struct {
	APIKey       string        `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"COUPONVAULT_VISION_BASE_URL"`
	Model        string        `yaml:"model" env:"COUPONVAULT_VISION_MODEL"`
	MaxTokens    int           `yaml:"max_tokens" env:"COUPONVAULT_VISION_MAX_TOKENS"`
	MaxImageEdge int           `yaml:"max_image_edge" env:"COUPONVAULT_VISION_MAX_IMAGE_EDGE"`
	Timeout      time.Duration `yaml:"timeout" env:"COUPONVAULT_VISION_TIMEOUT"`
}

// ServerConfig configures the HTTP proxy.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"COUPONVAULT_ADDR"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"COUPONVAULT_MAX_BODY_BYTES"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"COUPONVAULT_READ_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"COUPONVAULT_SHUTDOWN_TIMEOUT"`
}

// DaemonConfig holds daemon-related configuration.
type DaemonConfig struct {
	StartupWait time.Duration `yaml:"startup_wait" env:"COUPONVAULT_DAEMON_STARTUP_WAIT"`
	KillTimeout time.Duration `yaml:"kill_timeout" env:"COUPONVAULT_DAEMON_KILL_TIMEOUT"`
}

// LogConfig selects the log level and format of long-running processes.
type LogConfig struct {
	Level string `yaml:"level" env:"COUPONVAULT_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"COUPONVAULT_LOG_JSON"`
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Storage: StorageConfig{
			MinFreeSpace:        10 * 1024 * 1024,
			MinFreeSpaceWarning: 50 * 1024 * 1024,
			LockTimeout:         3 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelays: []time.Duration{
				0,
				5 * time.Second,
				30 * time.Second,
			},
		},
		RetryQueue: RetryQueueConfig{
			CheckInterval: 30 * time.Second,
			BackoffSchedule: []time.Duration{
				5 * time.Second,
				30 * time.Second,
				2 * time.Minute,
				5 * time.Minute,
				15 * time.Minute,
			},
		},
		Vision: VisionConfig{
			BaseURL:      "https://api.anthropic.com",
			Model:        "claude-3-haiku-20240307",
			MaxTokens:    1000,
			MaxImageEdge: 1568,
			Timeout:      60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			MaxBodyBytes:    10 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Daemon: DaemonConfig{
			StartupWait: 500 * time.Millisecond,
			KillTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Global is the process-wide configuration, loaded once at startup.
var Global = DefaultRuntimeConfig()

// DefaultFilePath returns the XDG location of the config file.
func DefaultFilePath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// FilePath returns COUPONVAULT_CONFIG if set, else DefaultFilePath.
func FilePath() string {
	if p := os.Getenv("COUPONVAULT_CONFIG"); p != "" {
		return p
	}
	return DefaultFilePath()
}

// Load builds a configuration from defaults, the YAML file at path (a
// missing file is ignored) and the environment.
func Load(path string) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RuntimeConfig) loadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ParseEnv applies environment overrides to target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values that would make a component misbehave.
func (c *RuntimeConfig) Validate() error {
	switch {
	case c.HTTP.MaxRetries < 0:
		return fmt.Errorf("http.max_retries must not be negative")
	case c.HTTP.Timeout <= 0:
		return fmt.Errorf("http.timeout must be positive")
	case c.Vision.MaxTokens <= 0:
		return fmt.Errorf("vision.max_tokens must be positive")
	case c.Vision.MaxImageEdge < 64:
		return fmt.Errorf("vision.max_image_edge must be at least 64")
	case c.Server.MaxBodyBytes <= 0:
		return fmt.Errorf("server.max_body_bytes must be positive")
	case c.Server.Addr == "":
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

// Redacted returns a copy with secrets masked.
func (c *RuntimeConfig) Redacted() *RuntimeConfig {
	redacted := *c
	if redacted.Vision.APIKey != "" {
		redacted.Vision.APIKey = "***"
	}
	return &redacted
}

// Marshal renders the configuration as YAML with secrets removed.
func (c *RuntimeConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

// Reset restores the defaults. Used by tests.
func (c *RuntimeConfig) Reset() {
	*c = *DefaultRuntimeConfig()
}
