package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BRIEFBOARD_NEWS_API_KEY.
const EnvPrefix = "BRIEFBOARD"

type Server struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

type News struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Country string        `mapstructure:"country"`
}

type Finance struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	Burst                int           `mapstructure:"burst"`
	MinRequestInterval   time.Duration `mapstructure:"min_request_interval"`
	Watchlist            []string      `mapstructure:"watchlist"`
}

type Cache struct {
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
	Backend  string        `mapstructure:"backend"`
	Path     string        `mapstructure:"path"`
	Coalesce bool          `mapstructure:"coalesce"`
}

type Likes struct {
	Path string `mapstructure:"path"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Notifications struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
}

type Config struct {
	Server        Server        `mapstructure:"server"`
	News          News          `mapstructure:"news"`
	Finance       Finance       `mapstructure:"finance"`
	Cache         Cache         `mapstructure:"cache"`
	Likes         Likes         `mapstructure:"likes"`
	Log           Log           `mapstructure:"log"`
	Notifications Notifications `mapstructure:"notifications"`
}

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

func Default() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			RequestTimeout: 10 * time.Second,
			CORSOrigins:    []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
		News: News{
			BaseURL: "https://newsapi.org",
			Timeout: 10 * time.Second,
			Country: "us",
		},
		Finance: Finance{
			BaseURL:              "https://api.twelvedata.com",
			Timeout:              10 * time.Second,
			MaxRequestsPerMinute: 8,
			Burst:                1,
			Watchlist:            []string{"AAPL", "MSFT", "GOOGL", "AMZN", "EUR/USD", "BTC/USD"},
		},
		Cache: Cache{
			Enabled: true,
			TTL:     time.Hour,
			Backend: BackendFile,
			Path:    "data/api_cache.json",
		},
		Likes:         Likes{Path: "data/likes.db"},
		Log:           Log{Level: "info"},
		Notifications: Notifications{Lifetime: 5 * time.Second},
	}
}

// Load resolves the configuration: defaults, then the YAML or JSON file at
// path (or ./briefboard.* when path is empty and such a file exists), then
// BRIEFBOARD_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("briefboard")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Default(), fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid cache.backend %q: want file, sqlite or memory", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid cache.ttl %s", c.Cache.TTL)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid server.max_body_bytes %d", c.Server.MaxBodyBytes)
	}
	if c.Finance.MaxRequestsPerMinute < 0 || c.Finance.Burst < 0 {
		return errors.New("finance rate limits must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("news.base_url", d.News.BaseURL)
	v.SetDefault("news.api_key", d.News.APIKey)
	v.SetDefault("news.timeout", d.News.Timeout)
	v.SetDefault("news.country", d.News.Country)

	v.SetDefault("finance.base_url", d.Finance.BaseURL)
	v.SetDefault("finance.api_key", d.Finance.APIKey)
	v.SetDefault("finance.timeout", d.Finance.Timeout)
	v.SetDefault("finance.max_requests_per_minute", d.Finance.MaxRequestsPerMinute)
	v.SetDefault("finance.burst", d.Finance.Burst)
	v.SetDefault("finance.min_request_interval", d.Finance.MinRequestInterval)
	v.SetDefault("finance.watchlist", d.Finance.Watchlist)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.coalesce", d.Cache.Coalesce)

	v.SetDefault("likes.path", d.Likes.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("notifications.lifetime", d.Notifications.Lifetime)
}
