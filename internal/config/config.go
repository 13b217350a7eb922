// Package config loads ecosensor configuration from a yaml file, a .env file
// and ECOSENSOR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
	"github.com/saveecobot/ecosensor/internal/saveecobot/upstream"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. ECOSENSOR_API_URL.
const EnvPrefix = "ECOSENSOR"

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "ecosensor.yaml"

// Config holds all configuration for ecosensor.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Selection SelectionConfig `mapstructure:"selection"`
	Poll      PollConfig      `mapstructure:"poll"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// APIConfig configures the SaveEcoBot upstream client and cache.
type APIConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheWindow time.Duration `mapstructure:"cache_window"`
}

// SelectionConfig chooses which stations become sensors.
// City and StationIDs drive the entry path; the name lists drive the platform path.
type SelectionConfig struct {
	City         string   `mapstructure:"city"`
	StationIDs   []string `mapstructure:"station_ids"`
	CityNames    []string `mapstructure:"city_names"`
	StationNames []string `mapstructure:"station_names"`
}

// PollConfig configures the sensor update scheduler.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", upstream.DefaultURL)
	v.SetDefault("api.timeout", upstream.DefaultTimeout)
	v.SetDefault("api.cache_window", saveecobot.DefaultCacheWindow)

	v.SetDefault("selection.city", "")
	v.SetDefault("selection.station_ids", []string{})
	v.SetDefault("selection.city_names", []string{})
	v.SetDefault("selection.station_names", []string{})

	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("poll.concurrency", 4)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load reads configuration. An empty path looks for ecosensor.yaml in the
// working directory and /etc/ecosensor; a missing default file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ecosensor")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.CacheWindow <= 0 {
		errs = append(errs, errors.New("api.cache_window must be positive"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if c.Poll.Concurrency <= 0 {
		errs = append(errs, errors.New("poll.concurrency must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v must be within [0, 1]", c.Telemetry.SampleRatio))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesEntry reports whether the selection is an entry selection (city or
// station ids without name lists) rather than a platform selection.
func (s SelectionConfig) UsesEntry() bool {
	return s.City != "" && len(s.CityNames) == 0 && len(s.StationNames) == 0
}

// Entry returns the entry options of the selection.
func (s SelectionConfig) Entry() entity.EntryOptions {
	return entity.EntryOptions{City: s.City, StationIDs: s.StationIDs}
}

// Platform returns the declarative selection.
func (s SelectionConfig) Platform() entity.Selection {
	return entity.Selection{
		StationIDs:   s.StationIDs,
		CityNames:    s.CityNames,
		StationNames: s.StationNames,
	}
}
