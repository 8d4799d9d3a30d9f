package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Env     string
	Port    string
	BaseURL string

	BotToken string
	AdminID  string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		BaseURL:   getEnv("BASE_URL", "http://localhost:8080"),
		BotToken:  os.Getenv("BOT_TOKEN"),
		AdminID:   os.Getenv("ADMIN_ID"),
		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", dbStr, err)
		}
		cfg.RedisDB = db
	}

	if cfg.AdminID == "" {
		return nil, fmt.Errorf("ADMIN_ID is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
