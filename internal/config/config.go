// Package config handles configuration loading and validation for engaged.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Watch configuration for notebook discovery.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Persist configuration for the write-back policy.
	Persist PersistConfig `toml:"persist" json:"persist" yaml:"persist"`

	// EventLog configuration for the event-persistence variant.
	EventLog EventLogConfig `toml:"event_log" json:"event_log" yaml:"event_log"`

	// Feed configuration for the editor-plugin socket.
	Feed FeedConfig `toml:"feed" json:"feed" yaml:"feed"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// WatchConfig holds notebook discovery configuration.
type WatchConfig struct {
	// Paths is a list of directories to monitor for notebooks.
	Paths []string `toml:"paths" json:"paths" yaml:"paths"`
}

// PersistConfig holds write-back policy configuration.
type PersistConfig struct {
	// QuietMs is the debounce quiet period in milliseconds: a burst of
	// events coalesces into one save this long after the last mutation.
	QuietMs int `toml:"quiet_ms" json:"quiet_ms" yaml:"quiet_ms"`
}

// Quiet returns the quiet period as a duration.
func (p PersistConfig) Quiet() time.Duration {
	return time.Duration(p.QuietMs) * time.Millisecond
}

// EventLogConfig holds the event-persistence variant configuration.
type EventLogConfig struct {
	// Enabled includes the raw event ring in the durable record and
	// mirrors it to the spool.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Cap is the maximum retained entries per document.
	Cap int `toml:"cap" json:"cap" yaml:"cap"`

	// SpoolPath is the SQLite spool database path.
	SpoolPath string `toml:"spool_path" json:"spool_path" yaml:"spool_path"`
}

// FeedConfig holds the editor-plugin transport configuration.
type FeedConfig struct {
	// SocketPath is the unix socket the daemon listens on.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: stderr, stdout, or file.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Persist: PersistConfig{
			QuietMs: 750,
		},
		EventLog: EventLogConfig{
			Enabled:   false,
			Cap:       5000,
			SpoolPath: filepath.Join(dataDir, "events.db"),
		},
		Feed: FeedConfig{
			SocketPath: filepath.Join(dataDir, "engaged.sock"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(dataDir, "engaged.log"),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Persist.QuietMs <= 0 {
		return fmt.Errorf("persist.quiet_ms must be positive, got %d", c.Persist.QuietMs)
	}
	if c.EventLog.Cap <= 0 {
		return fmt.Errorf("event_log.cap must be positive, got %d", c.EventLog.Cap)
	}
	if c.EventLog.Enabled && c.EventLog.SpoolPath == "" {
		return fmt.Errorf("event_log.spool_path required when event_log is enabled")
	}
	if c.Feed.SocketPath == "" {
		return fmt.Errorf("feed.socket_path must not be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stderr", "stdout", "file":
	default:
		return fmt.Errorf("invalid logging.output: %s", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path required when logging.output is file")
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides. Variables are
// prefixed with ENGAGED_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ENGAGED_WATCH_PATHS"); v != "" {
		c.Watch.Paths = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("ENGAGED_QUIET_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Persist.QuietMs = ms
		}
	}
	if v := os.Getenv("ENGAGED_SOCKET_PATH"); v != "" {
		c.Feed.SocketPath = v
	}
	if v := os.Getenv("ENGAGED_SPOOL_PATH"); v != "" {
		c.EventLog.SpoolPath = v
	}
	if v := os.Getenv("ENGAGED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// DataDir returns the engaged data directory, honoring the
// ENGAGED_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("ENGAGED_DATA_DIR"); envDir != "" {
		return envDir
	}
	return platformDataDir()
}
