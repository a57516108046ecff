package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LockBackendSQL   = "sql"
	LockBackendRedis = "redis"
)

type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	MigrationsPath  string
	ServerPort      int
	TokenSecret     string
	TableTokenTTL   time.Duration
	MatchLockTTL    time.Duration
	LockBackend     string
	RedisURL        string
	SessionLifetime time.Duration
}

// Load reads the configuration from the environment, loading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DatabaseDriver: get("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    get("DATABASE_URL", "poolbracket.db?_journal_mode=WAL"),
		MigrationsPath: get("MIGRATIONS_PATH", "migrations"),
		TokenSecret:    get("TOKEN_SECRET", ""),
		LockBackend:    get("LOCK_BACKEND", LockBackendSQL),
		RedisURL:       get("REDIS_URL", ""),
	}

	if cfg.DatabaseDriver != "sqlite3" && cfg.DatabaseDriver != "postgres" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", cfg.DatabaseDriver)
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET environment variable is not set")
	}

	port, err := strconv.Atoi(get("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"TABLE_TOKEN_TTL", "12h", &cfg.TableTokenTTL},
		{"MATCH_LOCK_TTL", "30s", &cfg.MatchLockTTL},
		{"SESSION_LIFETIME", "24h", &cfg.SessionLifetime},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(get(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s environment variable: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	switch cfg.LockBackend {
	case LockBackendSQL:
	case LockBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when LOCK_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("LOCK_BACKEND must be sql or redis, got %q", cfg.LockBackend)
	}

	return cfg, nil
}
