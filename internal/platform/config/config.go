// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored when present for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"carledger/pkg/domain"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// GovernmentAuthority is the single key allowed to register users'
	// verification decisions and mint car titles.
	GovernmentAuthority domain.Authority

	DatabaseURL string

	Redis RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	ForSaleCacheTTL time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig captures the Redis connection settings. An empty URL disables
// the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads configuration from the environment. Only the government
// authority is mandatory; everything else has a dev-friendly default.
func Load() (Config, error) {
	// Missing .env is fine; the environment may be fully populated already.
	_ = godotenv.Load()

	cfg := Config{
		Addr:            envOr("CARLEDGER_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AuditTopic:      envOr("AUDIT_TOPIC", "carledger.audit"),
		ForSaleCacheTTL: durationOr("FOR_SALE_CACHE_TTL", 30*time.Second),
		ShutdownTimeout: durationOr("SHUTDOWN_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	rawAuthority := os.Getenv("GOVERNMENT_AUTHORITY")
	if rawAuthority == "" {
		return Config{}, fmt.Errorf("GOVERNMENT_AUTHORITY is required")
	}
	authority, err := domain.ParseAuthority(rawAuthority)
	if err != nil {
		return Config{}, fmt.Errorf("GOVERNMENT_AUTHORITY: %w", err)
	}
	cfg.GovernmentAuthority = authority

	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
