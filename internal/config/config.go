package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Transit API configuration
	NS NSConfig

	// Background synchronization
	Sync SyncConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// NSConfig holds the transit API credentials
type NSConfig struct {
	BaseURL string
	APIKey  string // Subscription key (SECRET)
	Timeout time.Duration
}

// SyncConfig holds scheduling for the disruption and station syncs
type SyncConfig struct {
	Enabled         bool
	Schedule        string // cron expression with seconds
	Concurrency     int    // routes reconciled in parallel
	StationSchedule string
	StationCacheTTL time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// cronParser accepts the same expressions as the scheduler (seconds field included)
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := FromEnv()

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FromEnv builds the configuration from the current environment without validating it
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		NS: NSConfig{
			BaseURL: getEnv("NS_API_BASE_URL", "https://gateway.apiportal.ns.nl"),
			APIKey:  getEnv("NS_API_KEY", ""),
			Timeout: time.Duration(getEnvAsInt("NS_API_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Sync: SyncConfig{
			Enabled:         getEnvAsBool("SYNC_ENABLED", true),
			Schedule:        getEnv("SYNC_SCHEDULE", "0 */5 * * * *"),
			Concurrency:     getEnvAsInt("SYNC_CONCURRENCY", 4),
			StationSchedule: getEnv("STATION_SYNC_SCHEDULE", "0 30 3 * * *"),
			StationCacheTTL: time.Duration(getEnvAsInt("STATION_CACHE_TTL_MINUTES", 60)) * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.NS.APIKey == "" {
		return fmt.Errorf("NS_API_KEY is required")
	}

	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", c.Sync.Concurrency)
	}

	if c.Sync.StationCacheTTL <= 0 {
		return fmt.Errorf("STATION_CACHE_TTL_MINUTES must be positive, got %s", c.Sync.StationCacheTTL)
	}

	if _, err := cronParser.Parse(c.Sync.Schedule); err != nil {
		return fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", c.Sync.Schedule, err)
	}

	if _, err := cronParser.Parse(c.Sync.StationSchedule); err != nil {
		return fmt.Errorf("invalid STATION_SYNC_SCHEDULE %q: %w", c.Sync.StationSchedule, err)
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
