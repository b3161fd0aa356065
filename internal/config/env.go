// Package config provides configuration helpers for go-aura commands.
package config

import (
	"fmt"
	"os"
)

// Default server configuration.
const (
	DefaultPort     = "8080"
	DefaultLogLevel = "info"
)

// GoogleAPIKey returns the Gemini API key from GOOGLE_API_KEY.
// Exits with usage if not set.
func GoogleAPIKey() string {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: GOOGLE_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: GOOGLE_API_KEY=... go run ./cmd/...")
		os.Exit(1)
	}
	return key
}

// Port returns the HTTP port from AURA_PORT env var or the default.
func Port() string {
	if p := os.Getenv("AURA_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// LogLevel returns the log level from AURA_LOG_LEVEL env var or the default.
func LogLevel() string {
	if l := os.Getenv("AURA_LOG_LEVEL"); l != "" {
		return l
	}
	return DefaultLogLevel
}

// Env returns the value of an env var or a fallback default.
func Env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
