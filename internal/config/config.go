// Package config loads application configuration from defaults, an optional
// YAML file and CINEMAN_-prefixed environment variables, in that order of
// increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cineman/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CINEMAN_CONFIG"

// envPrefix is the prefix for environment variable overrides. A double
// underscore separates nesting levels so that keys containing underscores
// stay addressable, e.g. CINEMAN_CACHE__MAX_SIZE -> cache.max_size.
const envPrefix = "CINEMAN_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	HTTPClient HTTPClientConfig `koanf:"http_client"`
	Validation ValidationConfig `koanf:"validation"`
	Session    SessionConfig    `koanf:"session"`
	LLM        LLMConfig        `koanf:"llm"`
	TMDB       ProviderConfig   `koanf:"tmdb"`
	OMDB       ProviderConfig   `koanf:"omdb"`
	Watchmode  WatchmodeConfig  `koanf:"watchmode"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxSize     int           `koanf:"max_size"`
	SuccessTTL  time.Duration `koanf:"success_ttl"`
	NotFoundTTL time.Duration `koanf:"not_found_ttl"`
	ErrorTTL    time.Duration `koanf:"error_ttl"`
}

type HTTPClientConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	MaxRetries        int           `koanf:"max_retries"`
	BackoffBase       time.Duration `koanf:"backoff_base"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

type ValidationConfig struct {
	DropThreshold       float64       `koanf:"drop_threshold"`
	SimilarityThreshold float64       `koanf:"similarity_threshold"`
	WeakSimilarityFloor float64       `koanf:"weak_similarity_floor"`
	SingleSourcePenalty float64       `koanf:"single_source_penalty"`
	MaxConcurrent       int           `koanf:"max_concurrent"`
	BatchTimeout        time.Duration `koanf:"batch_timeout"`
}

type SessionConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	HistoryLimit int           `koanf:"history_limit"`
}

type LLMConfig struct {
	APIKey       string  `koanf:"api_key"`
	BaseURL      string  `koanf:"base_url"`
	Model        string  `koanf:"model"`
	Temperature  float64 `koanf:"temperature"`
	SystemPrompt string  `koanf:"system_prompt"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type WatchmodeConfig struct {
	Enabled      bool   `koanf:"enabled"`
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	MonthlyLimit int    `koanf:"monthly_limit"`
}

type RateLimitConfig struct {
	DailyLimit int `koanf:"daily_limit"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path: "./cineman.db",
		},
		Cache: CacheConfig{
			Enabled:     true,
			MaxSize:     1000,
			SuccessTTL:  24 * time.Hour,
			NotFoundTTL: time.Hour,
			ErrorTTL:    5 * time.Minute,
		},
		HTTPClient: HTTPClientConfig{
			Timeout:           3 * time.Second,
			MaxRetries:        3,
			BackoffBase:       500 * time.Millisecond,
			RequestsPerSecond: 10,
		},
		Validation: ValidationConfig{
			DropThreshold:       0.5,
			SimilarityThreshold: 0.8,
			WeakSimilarityFloor: 0.5,
			SingleSourcePenalty: 0.8,
			MaxConcurrent:       8,
			BatchTimeout:        30 * time.Second,
		},
		Session: SessionConfig{
			Timeout:      time.Hour,
			HistoryLimit: 10,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 1.0,
		},
		TMDB: ProviderConfig{
			BaseURL: "https://api.themoviedb.org/3",
		},
		OMDB: ProviderConfig{
			BaseURL: "https://www.omdbapi.com/",
		},
		Watchmode: WatchmodeConfig{
			Enabled:      true,
			BaseURL:      "https://api.watchmode.com/v1",
			MonthlyLimit: 1000,
		},
		RateLimit: RateLimitConfig{
			DailyLimit: 50,
		},
	}
}

// Load reads configuration from defaults, the first config file found (if
// any) and environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func envKeyMapper(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.HTTPClient.MaxRetries < 0 {
		return fmt.Errorf("http_client max_retries must not be negative, got %d", c.HTTPClient.MaxRetries)
	}
	if c.Validation.DropThreshold < 0 || c.Validation.DropThreshold > 1 {
		return fmt.Errorf("validation drop_threshold must be in [0,1], got %f", c.Validation.DropThreshold)
	}
	if c.Validation.SimilarityThreshold < 0 || c.Validation.SimilarityThreshold > 1 {
		return fmt.Errorf("validation similarity_threshold must be in [0,1], got %f", c.Validation.SimilarityThreshold)
	}
	if c.Validation.MaxConcurrent <= 0 {
		return fmt.Errorf("validation max_concurrent must be positive, got %d", c.Validation.MaxConcurrent)
	}
	return nil
}
