package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultImageLanguages is used when no language preference is configured.
const DefaultImageLanguages = "de,en,null"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// TMDBConfig is the configuration snapshot read by the TMDB image provider.
type TMDBConfig struct {
	APIKey         string `mapstructure:"api_key"`
	ImageLanguages string `mapstructure:"image_languages"`
	DebugLogging   bool   `mapstructure:"debug_logging"`
	BaseURL        string `mapstructure:"base_url"`
	ImageBaseURL   string `mapstructure:"image_base_url"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HealthConfig holds the background connectivity check configuration.
type HealthConfig struct {
	Cron string `mapstructure:"cron"`
}

// RateLimitConfig holds limits for the image proxy route.
type RateLimitConfig struct {
	ProxyPerMinute int `mapstructure:"proxy_per_minute"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8096,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		TMDB: TMDBConfig{
			ImageLanguages: DefaultImageLanguages,
			BaseURL:        "https://api.themoviedb.org",
			ImageBaseURL:   "https://image.tmdb.org",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Health: HealthConfig{
			Cron: "*/30 * * * *",
		},
		RateLimit: RateLimitConfig{
			ProxyPerMinute: 120,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.imagefetch")
	}

	v.SetEnvPrefix("IMAGEFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyEmbedded()
	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	// api_key has no default but must be registered so env overrides unmarshal
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.image_languages", d.TMDB.ImageLanguages)
	v.SetDefault("tmdb.debug_logging", false)
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.image_base_url", d.TMDB.ImageBaseURL)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("health.cron", d.Health.Cron)
	v.SetDefault("ratelimit.proxy_per_minute", d.RateLimit.ProxyPerMinute)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Store holds the current TMDB configuration snapshot.
// Readers get a copy, so a fetch sees one consistent snapshot.
type Store struct {
	current atomic.Pointer[TMDBConfig]
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg TMDBConfig) *Store {
	s := &Store{}
	s.Set(cfg)
	return s
}

// Snapshot returns the current TMDB configuration.
func (s *Store) Snapshot() TMDBConfig {
	return *s.current.Load()
}

// Set replaces the current TMDB configuration.
func (s *Store) Set(cfg TMDBConfig) {
	s.current.Store(&cfg)
}

// Watch loads configPath and keeps store in sync with later edits to the file.
// onChange, if non-nil, is called after each successful reload.
func Watch(configPath string, store *Store, onChange func(*Config), onError func(error)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	store.Set(cfg.TMDB)

	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(fsnotify.Event) {
		updated, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		store.Set(updated.TMDB)
		if onChange != nil {
			onChange(updated)
		}
	})
	v.WatchConfig()

	return cfg, nil
}
