package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Loyalty  LoyaltyConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type LoyaltyConfig struct {
	// QuotaTimezone is the IANA zone whose calendar day bounds the spin
	// quota. One consistent boundary per deployment.
	QuotaTimezone     string
	BalanceCacheTTL   time.Duration
	ReconcileInterval time.Duration
	ReconcileWorkers  int
	ReconcilePageSize int
	MetricsListenAddr string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cacheTTL, err := time.ParseDuration(getEnv("BALANCE_CACHE_TTL", "10m"))
	if err != nil {
		return nil, errors.New("invalid balance cache ttl")
	}

	reconcileInterval, err := time.ParseDuration(getEnv("RECONCILE_INTERVAL", "1h"))
	if err != nil {
		return nil, errors.New("invalid reconcile interval")
	}

	workers, err := strconv.Atoi(getEnv("RECONCILE_WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, errors.New("invalid reconcile workers")
	}

	pageSize, err := strconv.Atoi(getEnv("RECONCILE_PAGE_SIZE", "500"))
	if err != nil || pageSize < 1 {
		return nil, errors.New("invalid reconcile page size")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "LoyaltyHub"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "loyaltyhub"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Loyalty: LoyaltyConfig{
			QuotaTimezone:     getEnv("QUOTA_TIMEZONE", "UTC"),
			BalanceCacheTTL:   cacheTTL,
			ReconcileInterval: reconcileInterval,
			ReconcileWorkers:  workers,
			ReconcilePageSize: pageSize,
			MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9102"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}
