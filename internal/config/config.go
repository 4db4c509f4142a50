// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes is the per-file upload limit (5 MiB).
const DefaultMaxUploadBytes = 5 * 1024 * 1024

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion        string
	S3Bucket         string
	S3PublicBaseURL  string
	S3PresignURLs    bool
	S3PresignExpiry  time.Duration
	SESSenderEmail   string
	SESReplyTo       string
	SESConfiguration string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// Extraction
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	ExtractionTimeout     time.Duration
	ExtractionRatePerSec  float64
	ExtractionBurst       int
	BreakerEnabled        bool
	BreakerMinRequests    uint32
	BreakerFailureRatio   float64
	BreakerOpenTimeout    time.Duration
	BreakerHalfOpenMaxReq uint32

	// Intake
	MaxUploadBytes int64

	// Application
	Port         string
	Stage        string
	LogLevel     string
	DashboardURL string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:        getEnv("AWS_REGION", "eu-west-3"),
		S3Bucket:         getEnv("S3_BUCKET", "applications"),
		S3PublicBaseURL:  getEnv("S3_PUBLIC_BASE_URL", ""),
		S3PresignURLs:    getEnvBool("S3_PRESIGN_URLS", false),
		S3PresignExpiry:  getEnvDuration("S3_PRESIGN_EXPIRY", time.Hour),
		SESSenderEmail:   getEnv("SES_SENDER_EMAIL", ""),
		SESReplyTo:       getEnv("SES_REPLY_TO", ""),
		SESConfiguration: getEnv("SES_CONFIGURATION_SET", ""),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "rental"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		// Extraction
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ExtractionTimeout:     getEnvDuration("EXTRACTION_TIMEOUT", 60*time.Second),
		ExtractionRatePerSec:  getEnvFloat("EXTRACTION_RATE_PER_SEC", 1),
		ExtractionBurst:       getEnvInt("EXTRACTION_BURST", 2),
		BreakerEnabled:        getEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:    uint32(getEnvInt("BREAKER_MIN_REQUESTS", 5)),
		BreakerFailureRatio:   getEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:    getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxReq: uint32(getEnvInt("BREAKER_HALF_OPEN_MAX_REQUESTS", 1)),

		// Intake
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),

		// Application
		Port:         getEnv("PORT", "8080"),
		Stage:        getEnv("STAGE", "dev"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DashboardURL: getEnv("DASHBOARD_URL", ""),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	sslMode := "require"
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable"
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
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
