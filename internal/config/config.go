package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	defaultDataDir = "./data"
	defaultPort    = "8080"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	// AppPassword gates the UI. Empty disables the gate entirely.
	AppPassword   string
	SessionSecret string
	DataDir       string
	Port          string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// Missing .env is fine; production should use real env injection.
	_ = godotenv.Load()

	cfg := Config{
		AppPassword:   os.Getenv("APP_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DataDir:       os.Getenv("DATA_DIR"),
		Port:          os.Getenv("PORT"),
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.AppPassword == "" {
		log.Print("warning: APP_PASSWORD is not set, password gate disabled")
	}
	if cfg.SessionSecret == "" {
		log.Print("warning: SESSION_SECRET is not set")
	}

	return cfg
}

// SettingsPath is where the shop settings document lives.
func (c Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "settings.json")
}

// QuotesDir is the root of the versioned quote tree.
func (c Config) QuotesDir() string {
	return filepath.Join(c.DataDir, "quotes")
}
