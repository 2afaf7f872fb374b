package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Seen-listing store: "file" or "redis"
	SeenStoreBackend string
	SeenStoreFile    string
	SeenStoreKey     string

	// PostgreSQL sink for raw listing rows, disabled when empty
	DatabaseURL string

	// Run configuration
	CheckInterval time.Duration
	AutoStart     bool

	// Filter tables and user settings files
	FiltersFile  string
	SettingsFile string

	// Image classification
	VisionAPIKey  string
	VisionTimeout time.Duration
	VisionCache   time.Duration

	// Sources
	ZipCode         string
	CraigslistURL   string
	OfferUpURL      string
	MercariURL      string
	ChromeBin       string
	ChromeWait      time.Duration
	SourceBlockTime time.Duration

	// Control API
	APIAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "console_deals"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 500),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		SeenStoreBackend:     strings.ToLower(getEnv("SEEN_STORE_BACKEND", "file")),
		SeenStoreFile:        getEnv("SEEN_LISTINGS_FILE", "seen_listings.json"),
		SeenStoreKey:         getEnv("SEEN_LISTINGS_KEY", "console_deals:seen"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		CheckInterval:        time.Duration(getEnvInt("CHECK_INTERVAL_MINUTES", 10)) * time.Minute,
		AutoStart:            getEnv("AUTO_START", "true") == "true",
		FiltersFile:          getEnv("FILTERS_FILE", ""),
		SettingsFile:         getEnv("SETTINGS_FILE", "user_settings.json"),
		VisionAPIKey:         getEnv("GOOGLE_VISION_API_KEY", ""),
		VisionTimeout:        time.Duration(getEnvInt("VISION_TIMEOUT_SECONDS", 8)) * time.Second,
		VisionCache:          time.Duration(getEnvInt("VISION_CACHE_HOURS", 24)) * time.Hour,
		ZipCode:              getEnv("ZIP_CODE", "95212"),
		CraigslistURL:        getEnv("CRAIGSLIST_URL", "https://stockton.craigslist.org"),
		OfferUpURL:           getEnv("OFFERUP_URL", "https://offerup.com"),
		MercariURL:           getEnv("MERCARI_URL", "https://www.mercari.com"),
		ChromeBin:            getEnv("CHROME_BIN", ""),
		ChromeWait:           time.Duration(getEnvInt("CHROME_WAIT_SECONDS", 6)) * time.Second,
		SourceBlockTime:      time.Duration(getEnvInt("SOURCE_BLOCK_SECONDS", 600)) * time.Second,
		APIAddr:              getEnv("API_ADDR", ":5000"),
		Environment:          getEnv("CONSOLEDEAL_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %s", c.CheckInterval)
	}
	if c.RedisStreamCount < 1 {
		return fmt.Errorf("redis stream count must be at least 1, got %d", c.RedisStreamCount)
	}
	switch c.SeenStoreBackend {
	case "file":
		if c.SeenStoreFile == "" {
			return fmt.Errorf("seen store file must be set for the file backend")
		}
	case "redis":
		if c.SeenStoreKey == "" {
			return fmt.Errorf("seen store key must be set for the redis backend")
		}
	default:
		return fmt.Errorf("unknown seen store backend %q", c.SeenStoreBackend)
	}
	if c.VisionTimeout <= 0 {
		return fmt.Errorf("vision timeout must be positive, got %s", c.VisionTimeout)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}
