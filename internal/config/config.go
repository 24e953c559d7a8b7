package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Analytics
	InactiveThreshold   time.Duration
	PullRefreshInterval time.Duration
	TopPagesLimit       int
	RollupInterval      time.Duration
	SessionRetention    time.Duration

	// Admin bootstrap
	AdminEmail    string
	AdminPassword string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		DBMaxConns:          getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:          getEnvAsIntOrDefault("DB_MIN_CONNS", 5),
		RedisURL:            mustGetEnv("REDIS_URL"),
		JWTSecret:           mustGetEnv("JWT_SECRET"),
		InactiveThreshold:   getEnvAsDurationOrDefault("INACTIVE_THRESHOLD", 5*time.Minute),
		PullRefreshInterval: getEnvAsDurationOrDefault("PULL_REFRESH_INTERVAL", 30*time.Second),
		TopPagesLimit:       getEnvAsIntOrDefault("TOP_PAGES_LIMIT", 5),
		RollupInterval:      getEnvAsDurationOrDefault("ROLLUP_INTERVAL", 15*time.Minute),
		SessionRetention:    getEnvAsDurationOrDefault("SESSION_RETENTION", 90*24*time.Hour),
		AdminEmail:          getEnvOrDefault("ADMIN_EMAIL", ""),
		AdminPassword:       getEnvOrDefault("ADMIN_PASSWORD", ""),
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
