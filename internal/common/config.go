package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Vertex   VertexConfig   `yaml:"vertex"`
	Judges   JudgesConfig   `yaml:"judges"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Queue    QueueConfig    `yaml:"queue"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // "postgres" | "sqlite"
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// StorageConfig selects where original uploads are kept.
type StorageConfig struct {
	Backend        string `yaml:"backend"` // "local" | "minio"
	Dir            string `yaml:"dir"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
}

// LLMConfig holds OpenAI-compatible provider configuration
type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// VertexConfig holds Vertex AI configuration for the second judge.
type VertexConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// JudgesConfig names the two judge providers and their per-call budget.
type JudgesConfig struct {
	Primary        string        `yaml:"primary"`   // "openai" | "vertex"
	Secondary      string        `yaml:"secondary"` // "openai" | "vertex"
	PrimaryModel   string        `yaml:"primary_model"`
	SecondaryModel string        `yaml:"secondary_model"`
	Timeout        time.Duration `yaml:"timeout"`
}

// PipelineConfig tunes per-document processing.
type PipelineConfig struct {
	StructuringTimeout time.Duration `yaml:"structuring_timeout"`
	LanguageTimeout    time.Duration `yaml:"language_timeout"`
	Translate          bool          `yaml:"translate"`
	Pdftotext          string        `yaml:"pdftotext"`      // binary name or absolute path
	MaxFileBytes       int64         `yaml:"max_file_bytes"` // 0 = no limit
}

// QueueConfig sizes the async reprocess queue.
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// IngestConfig controls the inbox watcher.
type IngestConfig struct {
	WatchDir string        `yaml:"watch_dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" | "text"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the built-in defaults before any file or env overlay.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server:  ServerConfig{GRPCAddr: ":8080"},
		Storage: StorageConfig{Backend: "local", Dir: "./data/originals", MinioBucket: "copy-catalog"},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
			Timeout: 90 * time.Second,
		},
		Vertex: VertexConfig{Region: "us-central1", Model: "gemini-1.5-pro"},
		Judges: JudgesConfig{
			Primary:   "openai",
			Secondary: "vertex",
			Timeout:   60 * time.Second,
		},
		Pipeline: PipelineConfig{
			StructuringTimeout: 2 * time.Minute,
			LanguageTimeout:    20 * time.Second,
			Pdftotext:          "pdftotext",
			MaxFileBytes:       50 << 20,
		},
		Queue:   QueueConfig{Workers: 4, Size: 256, ProcessTimeout: 5 * time.Minute},
		Ingest:  IngestConfig{Debounce: 500 * time.Millisecond},
		Logging: LoggingConfig{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

// LoadConfig loads .env (if present), then the YAML file named by CATALOG_CONFIG
// (if set), then environment variables on top.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.Storage.MinioEndpoint)
	c.Storage.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.Storage.MinioAccessKey)
	c.Storage.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.Storage.MinioSecretKey)
	c.Storage.MinioBucket = getEnv("MINIO_BUCKET", c.Storage.MinioBucket)
	c.Storage.MinioUseSSL = getEnvAsBool("MINIO_USE_SSL", c.Storage.MinioUseSSL)

	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)

	c.Vertex.Project = getEnv("VERTEX_PROJECT", c.Vertex.Project)
	c.Vertex.Region = getEnv("VERTEX_REGION", c.Vertex.Region)
	c.Vertex.Model = getEnv("VERTEX_MODEL", c.Vertex.Model)

	c.Judges.Primary = getEnv("JUDGE_PRIMARY", c.Judges.Primary)
	c.Judges.Secondary = getEnv("JUDGE_SECONDARY", c.Judges.Secondary)
	c.Judges.PrimaryModel = getEnv("JUDGE_PRIMARY_MODEL", c.Judges.PrimaryModel)
	c.Judges.SecondaryModel = getEnv("JUDGE_SECONDARY_MODEL", c.Judges.SecondaryModel)
	c.Judges.Timeout = getEnvAsDuration("JUDGE_TIMEOUT", c.Judges.Timeout)

	c.Pipeline.StructuringTimeout = getEnvAsDuration("STRUCTURING_TIMEOUT", c.Pipeline.StructuringTimeout)
	c.Pipeline.LanguageTimeout = getEnvAsDuration("LANGUAGE_TIMEOUT", c.Pipeline.LanguageTimeout)
	c.Pipeline.Translate = getEnvAsBool("TRANSLATE_TO_ENGLISH", c.Pipeline.Translate)
	c.Pipeline.Pdftotext = getEnv("PDFTOTEXT_PATH", c.Pipeline.Pdftotext)
	c.Pipeline.MaxFileBytes = getEnvAsInt64("MAX_FILE_BYTES", c.Pipeline.MaxFileBytes)

	c.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.ProcessTimeout = getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", c.Queue.ProcessTimeout)

	c.Ingest.WatchDir = getEnv("INGEST_WATCH_DIR", c.Ingest.WatchDir)
	c.Ingest.Debounce = getEnvAsDuration("INGEST_DEBOUNCE", c.Ingest.Debounce)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
	c.Logging.MaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", c.Logging.MaxSizeMB)
	c.Logging.MaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", c.Logging.MaxBackups)
	c.Logging.MaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", c.Logging.MaxAgeDays)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for postgres", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	for _, p := range []string{c.Judges.Primary, c.Judges.Secondary} {
		switch p {
		case "openai":
		case "vertex":
			if c.Vertex.Project == "" {
				return NewAppError("CONFIG_ERROR", "VERTEX_PROJECT is required for the vertex judge", ErrInvalidInput)
			}
		default:
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown judge provider %q", p), ErrInvalidInput)
		}
	}
	if c.Pipeline.MaxFileBytes < 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_BYTES must not be negative", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "local":
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			return NewAppError("CONFIG_ERROR", "MINIO_ENDPOINT is required for minio storage", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend), ErrInvalidInput)
	}
	return nil
}
