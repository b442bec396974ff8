// Package config loads the sitemon client settings from SITEMON_* environment
// variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/storage"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8000/api/v1"
	DefaultRequestTimeout = 30 * time.Second
	DefaultServiceName    = "sitemon"
)

type Config struct {
	APIBaseURL     string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`

	StorageBackend enums.StorageBackend `validate:"oneof=memory file redis"`
	StoragePath    string               `validate:"required_if=StorageBackend file"`
	StorageKey     string               `validate:"required"`

	RedisAddr     string `validate:"required_if=StorageBackend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	LogLevel       string `validate:"oneof=debug info warn error"`
	Env            string `validate:"oneof=development production test"`
	ServiceName    string `validate:"required"`
	TracingEnabled bool
	OTLPEndpoint   string `validate:"required_if=TracingEnabled true"`
}

func (cfg *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

// Load reads the environment over the defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:     envString("SITEMON_API_BASE_URL", DefaultAPIBaseURL),
		RequestTimeout: envDuration("SITEMON_REQUEST_TIMEOUT", DefaultRequestTimeout),
		StorageBackend: enums.StorageBackend(envString("SITEMON_STORAGE_BACKEND", string(enums.StorageBackendFile))),
		StoragePath:    envString("SITEMON_STORAGE_PATH", defaultStoragePath()),
		StorageKey:     envString("SITEMON_STORAGE_KEY", storage.DefaultKey),
		RedisAddr:      envString("SITEMON_REDIS_ADDR", ""),
		RedisPassword:  envString("SITEMON_REDIS_PASSWORD", ""),
		RedisDB:        envInt("SITEMON_REDIS_DB", 0),
		LogLevel:       strings.ToLower(envString("SITEMON_LOG_LEVEL", enums.LogLevelWarn)),
		Env:            envString("SITEMON_ENV", enums.EnvProduction),
		ServiceName:    envString("SITEMON_SERVICE_NAME", DefaultServiceName),
		TracingEnabled: envBool("SITEMON_TRACING_ENABLED", false),
		OTLPEndpoint:   envString("SITEMON_OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sitemon"
	}
	return filepath.Join(dir, "sitemon")
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envInt reads a non-negative int.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
