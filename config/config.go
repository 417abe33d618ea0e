package config

import (
	"fmt"
	"os"
	"time"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port           string
	StoreDriver    string
	DatabaseURL    string
	ExplainAPIURL  string
	ExplainTimeout time.Duration
	RoomIdleTTL    time.Duration
	LogLevel       string
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	explainTimeout, err := getDuration("EXPLAIN_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	roomTTL, err := getDuration("ROOM_IDLE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		StoreDriver:    getEnv("STORE_DRIVER", DriverMemory),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ExplainAPIURL:  getEnv("EXPLAIN_API_URL", ""),
		ExplainTimeout: explainTimeout,
		RoomIdleTTL:    roomTTL,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required with STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
