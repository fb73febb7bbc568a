// Package config provides YAML-based configuration for the uploader CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	// Backend connection settings
	Backend BackendConfig `yaml:"backend"`

	// Upload validation settings
	Upload UploadConfig `yaml:"upload"`

	// Realtime channel settings
	Channel ChannelConfig `yaml:"channel"`

	// Local storage settings
	Storage StorageConfig `yaml:"storage"`
}

// BackendConfig locates the processing backend.
type BackendConfig struct {
	BaseURL               string `yaml:"base_url"`
	WebSocketURL          string `yaml:"websocket_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// UploadConfig bounds what a selection batch may contain.
type UploadConfig struct {
	MaxFiles         int      `yaml:"max_files"`
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes"`
	AllowedTypes     []string `yaml:"allowed_types"`
}

// ChannelConfig tunes the realtime channel keepalive and reconnect policy.
type ChannelConfig struct {
	KeepaliveSeconds      int `yaml:"keepalive_seconds"`
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	MaxReconnectAttempts  int `yaml:"max_reconnect_attempts"`
}

// StorageConfig contains local data directory settings.
type StorageConfig struct {
	DataDirectory string `yaml:"data_directory"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8000",
			RequestTimeoutSeconds: 60,
		},
		Upload: UploadConfig{
			MaxFiles:         100,
			MaxFileSizeBytes: 5 * 1024 * 1024,
			AllowedTypes: []string{
				"application/pdf",
				"image/jpeg",
				"image/png",
				"text/csv",
			},
		},
		Channel: ChannelConfig{
			KeepaliveSeconds:      20,
			ReconnectDelaySeconds: 3,
			MaxReconnectAttempts:  3,
		},
		Storage: StorageConfig{
			DataDirectory: defaultDataDir(),
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults for a
// missing file or any unset field.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyFallbacks()
	return cfg, nil
}

// applyFallbacks restores defaults for fields the file zeroed out.
func (c *Config) applyFallbacks() {
	def := DefaultConfig()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.RequestTimeoutSeconds <= 0 {
		c.Backend.RequestTimeoutSeconds = def.Backend.RequestTimeoutSeconds
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = def.Upload.MaxFiles
	}
	if c.Upload.MaxFileSizeBytes <= 0 {
		c.Upload.MaxFileSizeBytes = def.Upload.MaxFileSizeBytes
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = def.Upload.AllowedTypes
	}
	if c.Channel.KeepaliveSeconds <= 0 {
		c.Channel.KeepaliveSeconds = def.Channel.KeepaliveSeconds
	}
	if c.Channel.ReconnectDelaySeconds <= 0 {
		c.Channel.ReconnectDelaySeconds = def.Channel.ReconnectDelaySeconds
	}
	if c.Channel.MaxReconnectAttempts <= 0 {
		c.Channel.MaxReconnectAttempts = def.Channel.MaxReconnectAttempts
	}
	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = def.Storage.DataDirectory
	}
}

// EnsureDirectories creates the local data directory tree.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.HistoryDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// HistoryDir is where batch reports are persisted.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.Storage.DataDirectory, "history")
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSeconds) * time.Second
}

// Keepalive returns the channel keepalive interval as a duration.
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.Channel.KeepaliveSeconds) * time.Second
}

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Channel.ReconnectDelaySeconds) * time.Second
}

// WebSocketBaseURL returns the configured websocket base, deriving it from
// the HTTP base URL when unset (http -> ws, https -> wss).
func (c *Config) WebSocketBaseURL() string {
	if c.Backend.WebSocketURL != "" {
		return strings.TrimRight(c.Backend.WebSocketURL, "/")
	}
	base := strings.TrimRight(c.Backend.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".wu-transcripts")
}
