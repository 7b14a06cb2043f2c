package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Sentinel service.
type Config struct {
	// Service addresses
	HTTPPort   string
	HealthPort string
	NatsURL    string

	// Redis (volatile cache tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Durable fallback (JSON files)
	DataDir string

	// Collaborators
	GeminiAPIKey     string
	DiscoveryModel   string
	InsightEngineURL string

	// Slack alerts
	SlackWebhookURL      string
	SlackAlertMinSeverity string

	// Scan behaviour
	CountPerDomain        int
	MaxConcurrentMissions int
	ScanHistoryMax        int

	// Feature flags
	DeepDiveEnabled    bool
	DeepDiveMaxDepth   int
	CorrelationEnabled bool
	AdaptiveEnabled    bool

	// External call timeouts
	LLMTimeout     time.Duration
	InsightTimeout time.Duration
	SlackTimeout   time.Duration
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		HTTPPort:   getEnvOrDefault("HTTP_PORT", "8080"),
		HealthPort: getEnvOrDefault("HEALTH_PORT", "8081"),
		NatsURL:    getEnvOrDefault("NATS_URL", ""),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       parseIntOrDefault("REDIS_DB", 0),

		DataDir: getEnvOrDefault("DATA_DIR", "."),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		DiscoveryModel:   getEnvOrDefault("DISCOVERY_MODEL", "gemini-2.5-flash-lite"),
		InsightEngineURL: getEnvOrDefault("INSIGHT_ENGINE_URL", "http://localhost:8000/api/v1/query"),

		SlackWebhookURL:       os.Getenv("SLACK_WEBHOOK_URL"),
		SlackAlertMinSeverity: getEnvOrDefault("SLACK_ALERT_MIN_SEVERITY", "HIGH"),

		CountPerDomain:        parseIntOrDefault("COUNT_PER_DOMAIN", 2),
		MaxConcurrentMissions: parseIntOrDefault("MAX_CONCURRENT_MISSIONS", 8),
		ScanHistoryMax:        parseIntOrDefault("SCAN_HISTORY_MAX", 50),

		DeepDiveEnabled:    getEnvOrDefault("DEEP_DIVE_ENABLED", "true") == "true",
		DeepDiveMaxDepth:   parseIntOrDefault("DEEP_DIVE_MAX_DEPTH", 2),
		CorrelationEnabled: getEnvOrDefault("CORRELATION_ENABLED", "true") == "true",
		AdaptiveEnabled:    getEnvOrDefault("ADAPTIVE_ENABLED", "true") == "true",

		LLMTimeout:     parseDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		InsightTimeout: parseDurationOrDefault("INSIGHT_TIMEOUT", 120*time.Second),
		SlackTimeout:   parseDurationOrDefault("SLACK_TIMEOUT", 10*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.MaxConcurrentMissions < 1 {
		return fmt.Errorf("MAX_CONCURRENT_MISSIONS must be at least 1")
	}

	if c.DeepDiveMaxDepth < 0 {
		return fmt.Errorf("DEEP_DIVE_MAX_DEPTH must not be negative")
	}

	if c.ScanHistoryMax < 1 {
		return fmt.Errorf("SCAN_HISTORY_MAX must be at least 1")
	}

	return nil
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
