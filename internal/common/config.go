package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extract    ExtractConfig
	PreExtract PreExtractConfig
	LLM        LLMConfig
	Rules      RulesConfig
	Cache      CacheConfig
	Inbox      InboxConfig
	LogLevel   string
}

// DatabaseConfig holds run-audit store configuration
type DatabaseConfig struct {
	Driver           string // sqlite | postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// ExtractConfig holds raw document extraction configuration
type ExtractConfig struct {
	Pdftotext string
	MaxPages  int
	Timeout   time.Duration
}

// PreExtractConfig holds the layout-text column windows ("start:end", empty = derive from header).
type PreExtractConfig struct {
	LeftWindow  string
	RightWindow string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider       string // openai | vertex | none
	Model          string
	APIKey         string
	BaseURL        string
	VertexProject  string
	VertexLocation string
	VertexModel    string
	Timeout        time.Duration
	MaxAttempts    int
	RPS            float64
}

// RulesConfig points at an optional rule-set file
type RulesConfig struct {
	File string
}

// CacheConfig holds advisory cache policy
type CacheConfig struct {
	TTL time.Duration
}

// InboxConfig holds the daemon inbox watcher settings
type InboxConfig struct {
	Dir         string
	Workers     int
	Debounce    time.Duration
	GCS         bool // enable gs:// refs
	WriteReport bool // drop validation_report.xlsx into each processed folder
}

// LoadDotEnv loads key/value pairs from path into the environment, overriding existing values.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return NewAppError(CodeConfig, "load "+path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:shipdocs.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Extract: ExtractConfig{
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			MaxPages:  getEnvAsInt("MAX_PAGES", 20),
			Timeout:   getEnvAsDuration("EXTRACT_TIMEOUT", 30*time.Second),
		},
		PreExtract: PreExtractConfig{
			LeftWindow:  getEnv("COLUMN_LEFT", ""),
			RightWindow: getEnv("COLUMN_RIGHT", ""),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:          getEnv("OPENAI_MODEL", "gpt-5-mini"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			VertexProject:  getEnv("VERTEX_PROJECT", ""),
			VertexLocation: getEnv("VERTEX_LOCATION", "us-central1"),
			VertexModel:    getEnv("VERTEX_MODEL", "gemini-2.0-flash"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxAttempts:    getEnvAsInt("LLM_MAX_ATTEMPTS", 2),
			RPS:            getEnvAsFloat64("LLM_RPS", 2),
		},
		Rules: RulesConfig{
			File: getEnv("RULES_FILE", ""),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		},
		Inbox: InboxConfig{
			Dir:         getEnv("INBOX_DIR", ""),
			Workers:     getEnvAsInt("WORKERS", 4),
			Debounce:    getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
			GCS:         getEnvAsBool("GCS_ENABLED", false),
			WriteReport: getEnvAsBool("INBOX_WRITE_REPORT", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// LLMEnabled reports whether the configured provider has the credentials it needs.
func (c *Config) LLMEnabled() bool {
	switch c.LLM.Provider {
	case "openai":
		return c.LLM.APIKey != ""
	case "vertex":
		return c.LLM.VertexProject != ""
	default:
		return false
	}
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "vertex", "none":
	default:
		return NewAppError(CodeConfig, "LLM_PROVIDER must be openai, vertex or none", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > 2 {
		return NewAppError(CodeConfig, "LLM_MAX_ATTEMPTS must be 1 or 2", ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError(CodeConfig, "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
