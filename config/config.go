package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from the environment
type Config struct {
	Port          string
	MongoURI      string
	MongoDBName   string
	FinnhubAPIKey string

	// Alert monitoring
	AlertBatchSize     int // symbols evaluated concurrently per batch
	AlertCheckMinutes  int // scheduler interval for the trigger cycle
	QuoteRatePerMinute int // quote provider request budget

	// Outbound email (alert event delivery)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	Environment string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDBName:   getEnv("MONGODB_DB", "marketgist"),
		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),

		AlertBatchSize:     getEnvInt("ALERT_BATCH_SIZE", 10),
		AlertCheckMinutes:  getEnvInt("ALERT_CHECK_INTERVAL_MINUTES", 2),
		QuoteRatePerMinute: getEnvInt("QUOTE_RATE_LIMIT_PER_MINUTE", 50),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@marketgist.app"),

		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if config.AlertBatchSize <= 0 {
		config.AlertBatchSize = 10
	}
	if config.AlertCheckMinutes <= 0 {
		config.AlertCheckMinutes = 2
	}

	AppConfig = config
	return config, nil
}

// MaskURI masks a connection URI for logging, preserving the scheme prefix
func MaskURI(uri string) string {
	if len(uri) <= 12 {
		return "***"
	}
	return uri[:12] + "***"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
