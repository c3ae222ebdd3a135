// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/blob"
	"github.com/dvloznov/saku-tracker/internal/scheduler"
	"github.com/dvloznov/saku-tracker/internal/store"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Durable image of the store.
	StoreBackend    string
	StoreKey        string
	StoreDir        string
	GCSBucket       string
	GCSPrefix       string
	GCSCredentials  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	AzureURL        string
	AzureContainer  string
	MongoURI        string
	MongoDB         string
	MongoCollection string
	DatabaseURL     string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiChatModel string
	// ModelCategoryMatch asks the model when a tool call's category does
	// not match any registered name.
	ModelCategoryMatch bool

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	JobWorkers   int
	JobRetries   int
	JobBackoff   time.Duration
	AnalysisCron string

	TelegramToken string

	NotionToken           string
	NotionDatabaseID      string
	NotionDebtsDatabaseID string

	BQProject string
	BQDataset string
	BQTable   string

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		StoreBackend:    getEnv("STORE_BACKEND", blob.BackendFile),
		StoreKey:        getEnv("STORE_KEY", store.DefaultKey),
		StoreDir:        getEnv("STORE_DIR", "./data"),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", ""),
		GCSCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("AWS_ENDPOINT", ""),
		AzureURL:        getEnv("AZURE_BLOB_URL", ""),
		AzureContainer:  getEnv("AZURE_CONTAINER", "saku"),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "saku"),
		MongoCollection: getEnv("MONGO_COLLECTION", "images"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", assistant.DefaultModelName),
		GeminiChatModel:    getEnv("GEMINI_CHAT_MODEL", assistant.DefaultChatModelName),
		ModelCategoryMatch: getEnvBool("MODEL_CATEGORY_MATCH", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saku"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "saku_events"),

		JobWorkers:   getEnvInt("JOB_WORKERS", 1),
		JobRetries:   getEnvInt("JOB_RETRIES", 3),
		JobBackoff:   getEnvDuration("JOB_BACKOFF", 5*time.Second),
		AnalysisCron: getEnv("ANALYSIS_CRON", scheduler.DefaultSpec),

		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),

		NotionToken:           getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID:      getEnv("NOTION_DATABASE_ID", ""),
		NotionDebtsDatabaseID: getEnv("NOTION_DEBTS_DATABASE_ID", ""),

		BQProject: getEnv("BQ_PROJECT", ""),
		BQDataset: getEnv("BQ_DATASET", "saku"),
		BQTable:   getEnv("BQ_TABLE", "transactions"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Blob returns the durable storage settings.
func (c *Config) Blob() blob.Config {
	return blob.Config{
		Backend:         c.StoreBackend,
		Dir:             c.StoreDir,
		GCSBucket:       c.GCSBucket,
		GCSPrefix:       c.GCSPrefix,
		GCSCredentials:  c.GCSCredentials,
		S3Bucket:        c.S3Bucket,
		S3Region:        c.S3Region,
		S3Endpoint:      c.S3Endpoint,
		AzureURL:        c.AzureURL,
		AzureContainer:  c.AzureContainer,
		MongoURI:        c.MongoURI,
		MongoDB:         c.MongoDB,
		MongoCollection: c.MongoCollection,
		DatabaseURL:     c.DatabaseURL,
	}
}

var backends = []string{
	blob.BackendMemory, blob.BackendFile, blob.BackendGCS, blob.BackendS3,
	blob.BackendAzure, blob.BackendMongo, blob.BackendPostgres,
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(backends, c.StoreBackend) {
		problems = append(problems, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, backends))
	}
	if strings.TrimSpace(c.StoreKey) == "" {
		problems = append(problems, "STORE_KEY cannot be empty")
	}

	require := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}
	switch c.StoreBackend {
	case blob.BackendFile:
		require(c.StoreDir == "", "STORE_DIR is required for the file backend")
	case blob.BackendGCS:
		require(c.GCSBucket == "", "GCS_BUCKET is required for the gcs backend")
	case blob.BackendS3:
		require(c.S3Bucket == "", "S3_BUCKET is required for the s3 backend")
	case blob.BackendAzure:
		require(c.AzureURL == "", "AZURE_BLOB_URL is required for the azblob backend")
		require(c.AzureContainer == "", "AZURE_CONTAINER is required for the azblob backend")
	case blob.BackendMongo:
		require(c.MongoURI == "", "MONGO_URI is required for the mongo backend")
	case blob.BackendPostgres:
		require(c.DatabaseURL == "", "DATABASE_URL is required for the postgres backend")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		require(c.AMQPExchange == "", "AMQP exchange name cannot be empty when AMQP URL is provided")
	}

	if c.JobWorkers < 1 || c.JobWorkers > 16 {
		problems = append(problems, fmt.Sprintf("invalid job workers %d: must be between 1 and 16", c.JobWorkers))
	}
	if c.JobRetries < 0 {
		problems = append(problems, fmt.Sprintf("invalid job retries %d: must not be negative", c.JobRetries))
	}
	if _, err := cron.ParseStandard(c.AnalysisCron); err != nil {
		problems = append(problems, fmt.Sprintf("invalid ANALYSIS_CRON '%s': %v", c.AnalysisCron, err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
