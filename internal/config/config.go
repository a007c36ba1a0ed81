// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Stats   StatsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port string
	// SubjectHeader é o cabeçalho lido como identidade autenticada na demo.
	// Vazio (padrão) desliga a ponte: só use atrás de um proxy que autentica
	// o usuário e sobrescreve o cabeçalho, pois o cliente pode forjá-lo.
	SubjectHeader string
}

// StorageConfig seleciona o backend: sem RedisURL o serviço roda só com o
// storage em memória.
type StorageConfig struct {
	RedisURL          string
	OpTimeout         time.Duration
	ReconnectInterval time.Duration
}

func (s StorageConfig) Shared() bool {
	return s.RedisURL != ""
}

type StatsConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	storage, err := buildStorageConfig()
	if err != nil {
		return Config{}, err
	}

	stats, err := buildStatsConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			SubjectHeader: getEnv("SUBJECT_HEADER", ""),
		},
		Storage: storage,
		Stats:   stats,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func buildStorageConfig() (StorageConfig, error) {
	opTimeout, err := getDuration("REDIS_OP_TIMEOUT", 250*time.Millisecond)
	if err != nil {
		return StorageConfig{}, err
	}
	reconnect, err := getDuration("REDIS_RECONNECT_INTERVAL", 5*time.Second)
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		OpTimeout:         opTimeout,
		ReconnectInterval: reconnect,
	}, nil
}

func buildStatsConfig() (StatsConfig, error) {
	enabled, err := strconv.ParseBool(getEnv("RATE_LIMIT_STATS_ENABLED", "true"))
	if err != nil {
		return StatsConfig{}, fmt.Errorf("invalid RATE_LIMIT_STATS_ENABLED: %w", err)
	}
	ttl, err := getDuration("RATE_LIMIT_STATS_TTL", 24*time.Hour)
	if err != nil {
		return StatsConfig{}, err
	}

	return StatsConfig{
		Enabled: enabled,
		Prefix:  getEnv("RATE_LIMIT_STATS_PREFIX", "ratelimit:stats"),
		TTL:     ttl,
	}, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
