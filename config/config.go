package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/mantay/busbooking/logger"
)

var loadOnce sync.Once

// LoadEnv loads the .env file once. Missing file is fine in production where
// everything comes from real environment variables.
func LoadEnv() {
	loadOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			logger.WarnLogger.Warn("No .env file found, relying on environment variables")
		}
	})
}

// GetEnv returns the value of key or fallback when unset.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
