// Package config loads runtime configuration for the crewforge server.
//
// Settings come from, in order of precedence: environment variables
// prefixed CREWFORGE_, an optional crewforge.yaml config file, and
// built-in defaults. No setting is required — the server starts with a
// usable configuration out of the box, degrading gracefully when no AI
// provider credentials are present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	// Provider is the logical provider name agents are bound to.
	Provider string `mapstructure:"provider"`

	// GeminiAPIKey enables the Gemini provider when non-empty.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`

	// MemoryWindow is the short-term memory window per agent.
	MemoryWindow int `mapstructure:"memory_window"`

	// QueueCapacity bounds each agent's task queue.
	QueueCapacity int `mapstructure:"queue_capacity"`

	// OpenSpecPath is the specification workspace root.
	OpenSpecPath string `mapstructure:"openspec_path"`

	// ArchivePath is the session archive directory. Empty disables
	// archiving.
	ArchivePath string `mapstructure:"archive_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", "gemini")
	// Registered with an empty default so AutomaticEnv picks up
	// CREWFORGE_GEMINI_API_KEY during Unmarshal.
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("memory_window", 10)
	v.SetDefault("queue_capacity", 64)
	v.SetDefault("openspec_path", "./openspec")
	v.SetDefault("archive_path", defaultArchivePath())
	v.SetDefault("log_level", "info")

	v.SetConfigName("crewforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".crewforge"))
	}

	v.SetEnvPrefix("CREWFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured log level to a slog level, defaulting
// to info for unknown values.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultArchivePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewforge"
	}
	return filepath.Join(home, ".crewforge")
}
