package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir               string // Base directory for the returns database
	Port                  int
	DevMode               bool
	LogLevel              string
	DefaultConfidence     float64 // Default confidence level p for ES estimation
	BootstrapReplications int     // Default bootstrap replications for standard errors
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Check ../data first (when running from a build subdirectory), then ./data
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:               dataDir,
		Port:                  getEnvAsInt("PORT", 8001),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DefaultConfidence:     getEnvAsFloat("DEFAULT_CONFIDENCE", 0.95),
		BootstrapReplications: getEnvAsInt("BOOTSTRAP_REPLICATIONS", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DefaultConfidence <= 0 || c.DefaultConfidence >= 1 {
		return fmt.Errorf("default confidence must be in (0,1), got %v", c.DefaultConfidence)
	}
	if c.BootstrapReplications <= 0 {
		return fmt.Errorf("bootstrap replications must be positive, got %d", c.BootstrapReplications)
	}
	return nil
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt gets environment variable as int with fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool gets environment variable as bool with fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsFloat gets environment variable as float64 with fallback
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
