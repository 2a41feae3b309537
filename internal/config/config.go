package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds provider, store, session and artwork settings.
// Load from env; call LoadEnvFile(".env") before Load() to use a .env file.
type Config struct {
	// Provider (Xtream player_api)
	APIBaseURL string // e.g. http://provider:8080
	APIUser    string
	APIPass    string

	// Web server
	Listen     string // e.g. :8080
	BaseURL    string // external URL shown in logs; optional
	MaxConns   int    // accepted TCP connections cap; 0 = unlimited
	RequestLog bool

	// Store
	DBPath string // SQLite database file

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Catalog refresh
	RefreshTTL time.Duration // staleness window for cached provider data

	// Artwork cache
	CacheDir       string  // downloaded icons/backdrops, served under /static/icons/
	PrewarmWorkers int     // pool size for background icon downloads
	PrewarmRPS     float64 // downloads per second across the pool; pacing for image hosts
}

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		APIBaseURL:     strings.TrimSuffix(os.Getenv("TELECAST_API_URL"), "/"),
		APIUser:        os.Getenv("TELECAST_API_USER"),
		APIPass:        os.Getenv("TELECAST_API_PASS"),
		Listen:         getEnv("TELECAST_LISTEN", ":8080"),
		BaseURL:        os.Getenv("TELECAST_BASE_URL"),
		MaxConns:       getEnvInt("TELECAST_MAX_CONNS", 64),
		RequestLog:     getEnvBool("TELECAST_REQUEST_LOG", true),
		DBPath:         getEnv("TELECAST_DB_PATH", "./telecast.db"),
		SessionSecret:  os.Getenv("TELECAST_SESSION_SECRET"),
		SessionTTL:     getEnvDuration("TELECAST_SESSION_TTL", 30*time.Minute),
		RefreshTTL:     getEnvDuration("TELECAST_REFRESH_TTL", 24*time.Hour),
		CacheDir:       getEnv("TELECAST_CACHE_DIR", "./static/icons"),
		PrewarmWorkers: getEnvInt("TELECAST_PREWARM_WORKERS", 10),
		PrewarmRPS:     getEnvFloat("TELECAST_PREWARM_RPS", 0.25),
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 24 * time.Hour
	}
	if c.PrewarmWorkers <= 0 {
		c.PrewarmWorkers = 10
	}
	if c.PrewarmRPS <= 0 {
		c.PrewarmRPS = 0.25
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
