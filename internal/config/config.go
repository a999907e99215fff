// Package config loads the settings of the example applications from an
// optional TOML file and ABOUTPAGE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Counter  CounterConfig
	NATS     NATSConfig
	Sessions SessionsConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Address    string
	ContextTTL time.Duration `mapstructure:"context_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	Dev   bool
}

// CounterConfig configures the counter widget on the about page.
type CounterConfig struct {
	Message string
	// Gate is one of "always", "never" or "skip-decrement".
	Gate string
}

// NATSConfig configures the embedded NATS server carrying lifecycle events.
type NATSConfig struct {
	Enabled bool
	Dir     string
	// Replay is how many retained lifecycle events a new page shows.
	Replay int
}

// SessionsConfig configures session storage. An empty DB keeps sessions in memory.
type SessionsConfig struct {
	DB string
}

// ZerologLevel parses the configured log level.
func (c LogConfig) ZerologLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// Load reads configuration from file and env. Env var overrides use prefix
// ABOUTPAGE_, e.g. ABOUTPAGE_COUNTER_GATE=never.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.context_ttl", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", true)
	v.SetDefault("counter.message", "About page")
	v.SetDefault("counter.gate", "always")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.dir", filepath.Join(os.TempDir(), "aboutpage-nats"))
	v.SetDefault("nats.replay", 10)
	v.SetDefault("sessions.db", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("ABOUTPAGE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("aboutpage")
	}

	v.SetEnvPrefix("ABOUTPAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicitly named file must exist
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return Config{}, err
	}
	return c, nil
}
