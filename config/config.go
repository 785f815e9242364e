package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Server
	Host       string
	Port       string
	APIKey     string
	AllowedIPs []string

	// Scheduler
	Concurrency      int
	MaxRetries       int
	CheckTimeout     time.Duration
	DispatchInterval time.Duration
	BulkMaxSize      int
	ResultsRetained  int // terminal results kept in memory, 0 = unbounded

	// Rate limits (tokens, refilled per minute)
	SingleRateCapacity int
	SingleRatePerMin   int
	BulkRateCapacity   int
	BulkRatePerMin     int

	// Proxies
	UseProxy         bool
	ProxyRequired    bool
	FailureThreshold int
	CooldownBase     time.Duration
	CooldownMax      time.Duration

	// Session driver sidecar
	DriverURL string

	// Main app integration
	MainAppURL      string
	MainAppAPIKey   string
	AutoSendResults bool

	// Result archive
	DatabaseURL    string
	ResultsLogPath string

	// File paths
	SitesFile   string
	ProxiesFile string
	ZipFile     string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() Config {
	return Config{
		Host:       getEnv("WORKER_HOST", "0.0.0.0"),
		Port:       getEnv("WORKER_PORT", "5000"),
		APIKey:     getEnv("API_KEY", ""),
		AllowedIPs: splitList(getEnv("ALLOWED_IPS", "")),

		Concurrency:      getEnvInt("CONCURRENCY", 5),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		CheckTimeout:     getEnvDuration("CHECK_TIMEOUT", 120*time.Second),
		DispatchInterval: getEnvDuration("DISPATCH_INTERVAL", 200*time.Millisecond),
		BulkMaxSize:      getEnvInt("BULK_MAX_SIZE", 50),
		ResultsRetained:  getEnvInt("RESULTS_RETAINED", 10000),

		SingleRateCapacity: getEnvInt("SINGLE_RATE_CAPACITY", 10),
		SingleRatePerMin:   getEnvInt("SINGLE_RATE_PER_MIN", 10),
		BulkRateCapacity:   getEnvInt("BULK_RATE_CAPACITY", 2),
		BulkRatePerMin:     getEnvInt("BULK_RATE_PER_MIN", 2),

		UseProxy:         getEnvBool("USE_PROXY", true),
		ProxyRequired:    getEnvBool("PROXY_REQUIRED", false),
		FailureThreshold: getEnvInt("PROXY_FAILURE_THRESHOLD", 3),
		CooldownBase:     getEnvDuration("PROXY_COOLDOWN_BASE", 30*time.Second),
		CooldownMax:      getEnvDuration("PROXY_COOLDOWN_MAX", 30*time.Minute),

		DriverURL: getEnv("DRIVER_URL", "http://127.0.0.1:9222"),

		MainAppURL:      getEnv("MAIN_APP_URL", ""),
		MainAppAPIKey:   getEnv("MAIN_APP_API_KEY", ""),
		AutoSendResults: getEnvBool("AUTO_SEND_RESULTS", true),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ResultsLogPath: getEnv("RESULTS_LOG", "logs/results.log"),

		SitesFile:   getEnv("SITES_FILE", "sites.yaml"),
		ProxiesFile: getEnv("PROXIES_FILE", "proxies.txt"),
		ZipFile:     getEnv("ZIP_FILE", "zip.txt"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
