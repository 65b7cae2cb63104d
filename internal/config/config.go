// Package config loads service settings from the environment and the model
// profile from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the service settings.
type Config struct {
	HTTPAddr        string        `validate:"required"`
	LogLevel        string        `validate:"omitempty,oneof=debug info warn error"`
	DatabaseDSN     string        `validate:"required"`
	CacheBackend    string        `validate:"oneof=redis memory"`
	RedisAddr       string        `validate:"required_if=CacheBackend redis,omitempty,hostname_port"`
	ClassifierAddr  string        `validate:"omitempty"`
	ClassifierTTL   time.Duration `validate:"gt=0"`
	TFLiteModel     string        `validate:"omitempty"`
	TFLiteThreads   int           `validate:"gte=0"`
	ProfilePath     string        `validate:"omitempty"`
	JWTSecret       string        `validate:"required_unless=AuthDisabled true"`
	JWTAudience     string
	AuthDisabled    bool
	PublicURL       string        `validate:"omitempty,url"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config using lookup to read variables.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		HTTPAddr:        r.str("HTTP_ADDR", ":8080"),
		LogLevel:        r.str("LOG_LEVEL", "info"),
		DatabaseDSN:     r.str("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=leafdoctor port=5432 sslmode=disable"),
		CacheBackend:    strings.ToLower(r.str("CACHE_BACKEND", "redis")),
		RedisAddr:       r.str("REDIS_ADDR", "redis:6379"),
		ClassifierAddr:  r.str("CLASSIFIER_ADDR", ""),
		ClassifierTTL:   r.duration("CLASSIFIER_TIMEOUT", 10*time.Second),
		TFLiteModel:     r.str("TFLITE_MODEL", ""),
		TFLiteThreads:   r.integer("TFLITE_THREADS", 0),
		ProfilePath:     r.str("MODEL_PROFILE", ""),
		JWTSecret:       r.str("JWT_SECRET", ""),
		JWTAudience:     r.str("JWT_AUDIENCE", ""),
		AuthDisabled:    r.boolean("AUTH_DISABLED", false),
		PublicURL:       r.str("PUBLIC_URL", ""),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, fallback string) string {
	if value, ok := r.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (r *reader) integer(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (r *reader) boolean(key string, fallback bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
