// Package config reads server settings from the environment
package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port              string
	FirebaseProjectID string
	CredentialsFile   string
	Environment       string
	LogLevel          string
	// Upload and import settings
	MaxUploadMB int
	RulesFile   string
	SQLitePath  string
}

// Load returns the configuration with defaults for unset variables
func Load() Config {
	return Config{
		Port:              getEnv("PORT", "8080"),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		Environment:       getEnv("GO_ENV", "production"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 10),
		RulesFile:         getEnv("RULES_FILE", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
	}
}

// UsesSQLite reports whether the server should persist to a local SQLite file instead of Firestore
func (c Config) UsesSQLite() bool {
	return c.SQLitePath != ""
}

// MaxUploadBytes returns the multipart upload limit
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}
