package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ServiceName    = "shopflow"
	ServiceVersion = "0.1.0"
)

type Config struct {
	Port             string
	PostgresURL      string
	RedisURL         string
	KafkaBrokers     []string
	StatusTopic      string
	JWTSecret        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	CatalogCacheTTL  time.Duration
	AllowStaffSignup bool
	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STATUS_TOPIC", "order.status_changed")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 24*time.Hour)
	v.SetDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	v.SetDefault("ALLOW_STAFF_SIGNUP", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("TRACING_ENABLED", true)
	v.SetDefault("TRACE_SAMPLE_RATIO", 1.0)

	cfg := &Config{
		Port:             v.GetString("PORT"),
		PostgresURL:      v.GetString("POSTGRES_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		StatusTopic:      v.GetString("STATUS_TOPIC"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		AccessTokenTTL:   v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:  v.GetDuration("REFRESH_TOKEN_TTL"),
		CatalogCacheTTL:  v.GetDuration("CATALOG_CACHE_TTL"),
		AllowStaffSignup: v.GetBool("ALLOW_STAFF_SIGNUP"),
		OTLPEndpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio: v.GetFloat64("TRACE_SAMPLE_RATIO"),
	}

	// Spans are still created with tracing off; they are just not exported.
	if !v.GetBool("TRACING_ENABLED") {
		cfg.OTLPEndpoint = ""
	}

	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.TraceSampleRatio < 0 || cfg.TraceSampleRatio > 1 {
		return nil, fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %v", cfg.TraceSampleRatio)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
