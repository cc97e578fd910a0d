package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by STORE_DRIVER.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	LogLevel       string

	SupportedCities []string

	StoreDriver      string
	SQLitePath       string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StoreMaxRetries  int

	ReportOutputDir string
	ReportFormat    string
	ChromeBin       string
	ReportS3Bucket  string
	AWSRegion       string

	BatchConcurrency int
	BatchRateLimitMs int
	ProgressGrace    time.Duration
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		SupportedCities: getEnvList("SUPPORTED_CITIES", []string{"mumbai", "bangalore", "hyderabad"}),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/deals.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "deals"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "deals123"),
		PostgresDB:       getEnv("POSTGRES_DB", "deal_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StoreMaxRetries:  getEnvInt("STORE_MAX_RETRIES", 5),

		ReportOutputDir: getEnv("REPORT_OUTPUT_DIR", "./output"),
		ReportFormat:    strings.ToLower(getEnv("REPORT_FORMAT", "pdf")),
		ChromeBin:       getEnv("CHROME_BIN", ""),
		ReportS3Bucket:  getEnv("REPORT_S3_BUCKET", ""),
		AWSRegion:       getEnv("AWS_REGION", "ap-south-1"),

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 2),
		BatchRateLimitMs: getEnvInt("BATCH_RATE_LIMIT_MS", 500),
		ProgressGrace:    time.Duration(getEnvInt("PROGRESS_GRACE_MS", 600)) * time.Millisecond,
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
