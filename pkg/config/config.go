package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	DefaultPageURL = "https://smashwiki.info/カラーバリエーション_(SP)"
	DefaultBaseURL = "https://smashwiki.info"
)

// Config holds the application configuration.
type Config struct {
	PageURL   string `mapstructure:"PAGE_URL"`
	BaseURL   string `mapstructure:"BASE_URL"`
	OutputDir string `mapstructure:"OUTPUT_DIR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	DryRun    bool   `mapstructure:"DRY_RUN"`

	FetchMode      string `mapstructure:"FETCH_MODE"`
	HTTPTimeout    int    `mapstructure:"HTTP_TIMEOUT"`
	UserAgent      string `mapstructure:"USER_AGENT"`
	ProxyURL       string `mapstructure:"PROXY_URL"`
	BrowserTimeout int    `mapstructure:"BROWSER_TIMEOUT"`

	MetricsTextfile string `mapstructure:"METRICS_TEXTFILE"`
	PushgatewayURL  string `mapstructure:"PUSHGATEWAY_URL"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"page-url":   "PAGE_URL",
	"base-url":   "BASE_URL",
	"output":     "OUTPUT_DIR",
	"log-level":  "LOG_LEVEL",
	"fetch-mode": "FETCH_MODE",
	"user-agent": "USER_AGENT",
	"dry-run":    "DRY_RUN",
}

// Load reads configuration from an optional .env file, environment variables
// and, when flags is non-nil, explicitly set command line flags.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// The .env file is optional; the environment alone is a valid configuration.
	_ = v.ReadInConfig()

	v.SetDefault("PAGE_URL", DefaultPageURL)
	v.SetDefault("BASE_URL", DefaultBaseURL)
	v.SetDefault("OUTPUT_DIR", "./data")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DRY_RUN", false)
	v.SetDefault("FETCH_MODE", FetchModeHTTP)
	v.SetDefault("HTTP_TIMEOUT", 0) // in seconds, 0 keeps the client default
	v.SetDefault("USER_AGENT", "colorvariant-harvester/1.0")
	v.SetDefault("PROXY_URL", "")
	v.SetDefault("BROWSER_TIMEOUT", 60) // in seconds
	v.SetDefault("METRICS_TEXTFILE", "")
	v.SetDefault("PUSHGATEWAY_URL", "")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the harvester cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PageURL) == "" {
		return fmt.Errorf("PAGE_URL must not be empty")
	}
	if _, err := url.ParseRequestURI(c.PageURL); err != nil {
		return fmt.Errorf("invalid PAGE_URL %q: %w", c.PageURL, err)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("invalid BASE_URL %q", c.BaseURL)
	}
	switch c.FetchMode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return fmt.Errorf("unknown FETCH_MODE %q (want %q or %q)", c.FetchMode, FetchModeHTTP, FetchModeBrowser)
	}
	if c.HTTPTimeout < 0 || c.BrowserTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (c *Config) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

func (c *Config) BrowserTimeoutDuration() time.Duration {
	return time.Duration(c.BrowserTimeout) * time.Second
}
