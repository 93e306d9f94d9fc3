package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvSeedPath   = "FLASHSWAP_SEED"
	EnvJournalDSN = "FLASHSWAP_JOURNAL"
	EnvListenAddr = "FLASHSWAP_LISTEN"
	EnvLogLevel   = "FLASHSWAP_LOG_LEVEL"
)

// LoadEnv loads environment variables from .env files. Missing files are ignored.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	var present []string
	for _, name := range filenames {
		if _, err := os.Stat(name); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
