// ABOUTME: Configuration loader for the review-insight client
// ABOUTME: Loads settings from environment variables and an optional .env file

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIURL is used when neither flag nor environment sets the backend URL
	DefaultAPIURL = "http://localhost:8080"

	appDirName = "review-insight"
)

// Config holds client settings
type Config struct {
	// Backend
	APIURL         string
	RequestTimeout time.Duration

	// Local state
	StateDir string

	// Read-through cache
	CacheTTL        time.Duration // zero disables expiry
	DedupeWindow    time.Duration
	CacheMaxEntries int // in-memory LRU size
	CacheMaxStored  int // persisted entries before Prune sweeps

	// Billing
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		APIURL:         NormalizeURL(getEnv("REVIEW_INSIGHT_API_URL", DefaultAPIURL)),
		RequestTimeout: getEnvDuration("REVIEW_INSIGHT_REQUEST_TIMEOUT", 30*time.Second),

		StateDir: getEnv("REVIEW_INSIGHT_STATE_DIR", DefaultStateDir()),

		CacheTTL:        getEnvDuration("REVIEW_INSIGHT_CACHE_TTL", 5*time.Minute),
		DedupeWindow:    getEnvDuration("REVIEW_INSIGHT_DEDUPE_WINDOW", 2*time.Second),
		CacheMaxEntries: getEnvInt("REVIEW_INSIGHT_CACHE_MAX_ENTRIES", 256),
		CacheMaxStored:  getEnvInt("REVIEW_INSIGHT_CACHE_MAX_STORED", 1000),

		PollInterval: getEnvDuration("REVIEW_INSIGHT_POLL_INTERVAL", 2*time.Second),
		PollTimeout:  getEnvDuration("REVIEW_INSIGHT_POLL_TIMEOUT", 60*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.CacheMaxEntries < 1 {
		return nil, fmt.Errorf("REVIEW_INSIGHT_CACHE_MAX_ENTRIES must be positive, got %d", cfg.CacheMaxEntries)
	}
	if cfg.CacheMaxStored < cfg.CacheMaxEntries {
		return nil, fmt.Errorf("REVIEW_INSIGHT_CACHE_MAX_STORED (%d) must be at least REVIEW_INSIGHT_CACHE_MAX_ENTRIES (%d)", cfg.CacheMaxStored, cfg.CacheMaxEntries)
	}
	if cfg.CacheTTL < 0 || cfg.DedupeWindow < 0 {
		return nil, fmt.Errorf("cache durations must not be negative")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("REVIEW_INSIGHT_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// DefaultStateDir returns the default state directory following XDG spec
func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDirName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// NormalizeURL adds a missing scheme and drops trailing slashes
func NormalizeURL(u string) string {
	return strings.TrimRight(ensureScheme(u), "/")
}

// ensureScheme adds http:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "http://" + url
	}
	return url
}
