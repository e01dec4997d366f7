package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API  APIConfig
	Sync SyncConfig
}

type APIConfig struct {
	BaseURL        string
	AuthToken      string
	RequestTimeout time.Duration
	ListTimeout    time.Duration
}

type SyncConfig struct {
	RetryStep     time.Duration
	RetryCount    int
	MaxUploadSize int64
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:5000/"),
			AuthToken:      getEnv("API_AUTH_TOKEN", ""),
			RequestTimeout: getEnvDuration("API_REQUEST_TIMEOUT", 15*time.Second),
			ListTimeout:    getEnvDuration("API_LIST_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			RetryStep:     getEnvDuration("SYNC_RETRY_STEP", 2*time.Second),
			RetryCount:    getEnvInt("SYNC_RETRY_COUNT", 3),
			MaxUploadSize: getEnvInt64("SYNC_MAX_UPLOAD_SIZE", 5*1024*1024),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		fmt.Printf("Warning: invalid duration for %s, using default\n", key)
	}
	return defaultValue
}
