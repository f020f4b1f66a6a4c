package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings backends.
const (
	SettingsMemory = "memory"
	SettingsRedis  = "redis"
	SettingsFile   = "file"
)

// Config holds runtime configuration for the sentinel dashboard.
type Config struct {
	Env string `envconfig:"SENTINEL_ENV" default:"development"`

	APIURL            string        `envconfig:"NEXUS_API_URL" default:"https://api.nexus-sentinel.app"`
	RequestTimeout    time.Duration `envconfig:"NEXUS_REQUEST_TIMEOUT" default:"0s"`
	RequestsPerSecond float64       `envconfig:"NEXUS_REQUESTS_PER_SECOND" default:"0"`
	RequestBurst      int           `envconfig:"NEXUS_REQUEST_BURST" default:"5"`
	Tracing           bool          `envconfig:"NEXUS_TRACING" default:"false"`
	Mock              bool          `envconfig:"SENTINEL_MOCK" default:"false"`

	Addr        string `envconfig:"SENTINEL_ADDR" default:":9876"`
	BasePath    string `envconfig:"SENTINEL_BASE_PATH" default:"/admin"`
	MetricsAddr string `envconfig:"SENTINEL_METRICS_ADDR"`
	Manifest    string `envconfig:"SENTINEL_MANIFEST"`
	Breakpoint  int    `envconfig:"SENTINEL_BREAKPOINT" default:"1024"`
	// IdleTimeout unmounts a viewer's panels after this long without requests or a
	// live stream. Negative disables it.
	IdleTimeout time.Duration `envconfig:"SENTINEL_IDLE_TIMEOUT" default:"2m"`

	Settings     string        `envconfig:"SENTINEL_SETTINGS" default:"memory"`
	RedisAddr    string        `envconfig:"SENTINEL_REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisTTL     time.Duration `envconfig:"SENTINEL_REDIS_TTL" default:"720h"`
	SettingsFile string        `envconfig:"SENTINEL_SETTINGS_FILE"`

	ChartAssetsHost string `envconfig:"SENTINEL_CHART_ASSETS_HOST"`
	ActionsPerMin   int    `envconfig:"SENTINEL_ACTIONS_PER_MINUTE" default:"30"`

	LogFormat string `envconfig:"SENTINEL_LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"SENTINEL_LOG_LEVEL" default:"info"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Settings {
	case SettingsMemory:
	case SettingsRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("config: SENTINEL_REDIS_ADDR is required for redis settings")
		}
	case SettingsFile:
		if strings.TrimSpace(c.SettingsFile) == "" {
			return errors.New("config: SENTINEL_SETTINGS_FILE is required for file settings")
		}
	default:
		return fmt.Errorf("config: unknown settings backend %q", c.Settings)
	}
	if c.RequestTimeout < 0 {
		return errors.New("config: NEXUS_REQUEST_TIMEOUT must not be negative")
	}
	if c.Breakpoint <= 0 {
		return errors.New("config: SENTINEL_BREAKPOINT must be positive")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("config: base path %q must start with /", c.BasePath)
	}
	return nil
}

// IsProduction returns true when the dashboard runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}
