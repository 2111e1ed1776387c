// Package config handles console configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for the console.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// API settings for the bot backend
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Sync settings for the realtime engine
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Archive settings for the local message archive
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global console settings.
type GlobalConfig struct {
	// DataDir is where the console stores its data (default: ~/.local/share/merchbot-console).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/merchbot-console).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// APIConfig contains settings for the bot backend API.
type APIConfig struct {
	// BaseURL is the root URL of the bot backend.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// TokenFile is the path of the file holding the operator bearer credential.
	TokenFile string `yaml:"token_file" mapstructure:"token_file"`

	// RequestTimeout bounds plain request/response calls. The long-poll call
	// gets its own budget derived from sync.long_poll_wait.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// SyncConfig contains settings for the conversation sync engine.
type SyncConfig struct {
	// LongPollWait is the server-side wait budget passed to the wait endpoint.
	LongPollWait time.Duration `yaml:"long_poll_wait" mapstructure:"long_poll_wait"`

	// PollBackoff is the fixed delay before re-entering the wait loop after a failure.
	PollBackoff time.Duration `yaml:"poll_backoff" mapstructure:"poll_backoff"`

	// UnreadInterval is how often the unread badge counters refresh.
	UnreadInterval time.Duration `yaml:"unread_interval" mapstructure:"unread_interval"`
}

// ArchiveConfig contains settings for the local message archive.
type ArchiveConfig struct {
	// Enabled toggles archiving of confirmed messages.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps next to messages.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// UnreadOnly starts the conversation list filtered to unread conversations.
	UnreadOnly bool `yaml:"unread_only" mapstructure:"unread_only"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "merchbot-console"),
			ConfigDir: filepath.Join(homeDir, ".config", "merchbot-console"),
		},
		API: APIConfig{
			BaseURL:        "http://localhost:8900",
			TokenFile:      "", // Will be set to ConfigDir/token
			RequestTimeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			LongPollWait:   30 * time.Second,
			PollBackoff:    2 * time.Second,
			UnreadInterval: 30 * time.Second,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "", // Will be set to DataDir/archive.db
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			UnreadOnly:     false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	if c.API.RequestTimeout < time.Second {
		return fmt.Errorf("api.request_timeout must be at least 1s")
	}

	if c.Sync.LongPollWait < time.Second {
		return fmt.Errorf("sync.long_poll_wait must be at least 1s")
	}

	if c.Sync.PollBackoff < 100*time.Millisecond {
		return fmt.Errorf("sync.poll_backoff must be at least 100ms")
	}

	if c.Sync.UnreadInterval < time.Second {
		return fmt.Errorf("sync.unread_interval must be at least 1s")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// TokenFilePath returns the full token file path.
func (c *Config) TokenFilePath() string {
	if c.API.TokenFile != "" {
		return c.API.TokenFile
	}
	return filepath.Join(c.Global.ConfigDir, "token")
}

// ArchivePath returns the full archive database path.
func (c *Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(c.Global.DataDir, "archive.db")
}
