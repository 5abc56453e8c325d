package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs at startup. It is built once
// in main and handed to constructors; nothing reads the environment after
// Load returns.
type Config struct {
	MongoURI        string
	DBName          string
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AppEnv          string
	Port            string
}

// Production reports whether the process runs with production hardening
// (secure cookies, suppressed error detail).
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] [INFO] .env not loaded:", err)
	}

	cfg := Config{
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "snackstore"),
		AccessSecret:    getEnvOrDefault("JWT_SECRET", ""),
		RefreshSecret:   getEnvOrDefault("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL_MINUTES", 15, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL_DAYS", 7, 24*time.Hour),
		AppEnv:          getEnvOrDefault("APP_ENV", "development"),
		Port:            getEnvOrDefault("PORT", "8080"),
	}

	if cfg.MongoURI == "" {
		return Config{}, errors.New("MONGO_URI is required")
	}
	if cfg.AccessSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.RefreshSecret == "" {
		return Config{}, errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
