package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	DataDir      string
	DatabasePath string

	// Report storage: "local" keeps files under DataDir, "s3" uses S3/MinIO.
	StorageBackend    string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Completion service defaults; stored settings take precedence.
	AIAPIURL  string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	OCRRequestDelay time.Duration
	WorkerCount     int
	QueueSize       int
	MaxUploadSize   int64

	RedisURL     string
	RateLimitRPS float64
}

// Load reads the environment, preloading a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DataDir:           dataDir,
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join(dataDir, "checkup.db")),
		StorageBackend:    getEnv("STORAGE_BACKEND", "local"),
		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "checkup-reports"),
		S3UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
		AIAPIURL:          getEnv("AI_API_URL", ""),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", "gpt-4o-mini"),
		RedisURL:          getEnv("REDIS_URL", ""),
	}

	timeout, err := getInt("AI_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	cfg.AITimeout = time.Duration(timeout) * time.Second

	delay, err := getInt("OCR_REQUEST_DELAY_MS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.OCRRequestDelay = time.Duration(delay) * time.Millisecond

	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 2); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 32); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_SIZE", 20*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadSize = int64(maxUpload)

	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
