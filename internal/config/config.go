package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverMongo     = "mongo"
	DriverFirestore = "firestore"
)

type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	// File path, or stdout/stderr.
	LogOutput string `envconfig:"LOG_OUTPUT" default:"stdout"`

	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	DatabaseURL    string        `envconfig:"DATABASE_URL" default:"story_weaver.db"`
	MongoURI       string        `envconfig:"MONGO_URI"`
	MongoDatabase  string        `envconfig:"MONGO_DATABASE" default:"story_weaver"`
	FirestoreID    string        `envconfig:"FIRESTORE_PROJECT_ID"`
	FirebaseCreds  string        `envconfig:"FIREBASE_CREDENTIALS_PATH"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	EnforceIndexes bool          `envconfig:"ENFORCE_INDEXES" default:"false"`

	// Empty disables prompt suggestions.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
}

// LoadConfig reads a .env file when one exists, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the selected store driver needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the sqlite store")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required for the mongo store")
		}
	case DriverFirestore:
		if c.FirestoreID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch strings.ToLower(c.LogEncoding) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown LOG_ENCODING %q, want json or console", c.LogEncoding)
	}
	if c.StoreTimeout < 0 {
		return errors.New("STORE_TIMEOUT must not be negative")
	}
	return nil
}

// SuggestionsEnabled reports whether a Gemini key was configured.
func (c *Config) SuggestionsEnabled() bool {
	return c.GeminiAPIKey != ""
}
