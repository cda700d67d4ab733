package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheBackendMemory   = "memory"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
)

// Config stores all configuration of the planner.
// The values are read by viper from an app.env file or environment variables.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	MatrixAPIKey     string        `mapstructure:"MATRIX_API_KEY"`
	MatrixBaseURL    string        `mapstructure:"MATRIX_BASE_URL"`
	MatrixTravelMode string        `mapstructure:"MATRIX_TRAVEL_MODE"`
	MatrixTimeout    time.Duration `mapstructure:"MATRIX_TIMEOUT"`
	MatrixRateLimit  float64       `mapstructure:"MATRIX_RATE_LIMIT"`

	CacheBackend       string        `mapstructure:"CACHE_BACKEND"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	CacheSweepSchedule string        `mapstructure:"CACHE_SWEEP_SCHEDULE"`
	RedisAddress       string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`

	SolverTimeLimit     time.Duration `mapstructure:"SOLVER_TIME_LIMIT"`
	SolverMaxIterations int           `mapstructure:"SOLVER_MAX_ITERATIONS"`
}

var defaults = map[string]any{
	"ENVIRONMENT":           "production",
	"LOG_LEVEL":             "info",
	"MATRIX_API_KEY":        "",
	"MATRIX_BASE_URL":       "https://maps.googleapis.com/maps/api",
	"MATRIX_TRAVEL_MODE":    "driving",
	"MATRIX_TIMEOUT":        "10s",
	"MATRIX_RATE_LIMIT":     10.0,
	"CACHE_BACKEND":         CacheBackendMemory,
	"CACHE_TTL":             "1h",
	"CACHE_SWEEP_SCHEDULE":  "@every 10m",
	"REDIS_ADDRESS":         "",
	"REDIS_PASSWORD":        "",
	"DATABASE_URL":          "",
	"SOLVER_TIME_LIMIT":     "30s",
	"SOLVER_MAX_ITERATIONS": 200000,
}

// Load reads configuration from path/app.env (optional) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: unmarshal: %w", err)
	}

	cfg.RedisPassword = trimOptionalQuotes(cfg.RedisPassword)
	cfg.MatrixAPIKey = trimOptionalQuotes(cfg.MatrixAPIKey)
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(c.RedisAddress) == "" {
			return errors.New("REDIS_ADDRESS is required when CACHE_BACKEND=redis")
		}
	case CacheBackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when CACHE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if c.MatrixTimeout <= 0 {
		return errors.New("MATRIX_TIMEOUT must be positive")
	}
	if c.SolverTimeLimit <= 0 {
		return errors.New("SOLVER_TIME_LIMIT must be positive")
	}
	if c.SolverMaxIterations <= 0 {
		return errors.New("SOLVER_MAX_ITERATIONS must be positive")
	}

	return nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func trimOptionalQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}
