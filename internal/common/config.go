package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Pipeline  PipelineConfig
}

// LLMConfig holds completion-client configuration
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	AllowStub   bool
	MaxAttempts int
}

// RateLimitConfig holds quota-ledger limits
type RateLimitConfig struct {
	RequestsPerMinute int
	TokensPerMinute   int
	TokensPerDay      int
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	DSN string
}

// PipelineConfig holds extraction pipeline behavior flags
type PipelineConfig struct {
	Workers               int
	QueueSize             int
	ProcessTimeout        time.Duration
	MaxPages              int
	MinTextLength         int
	ApplySummaryOverrides bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     getEnv("PIPELINE_LLM_API_BASE", "https://api.groq.com/openai/v1"),
			APIKey:      getEnv("PIPELINE_LLM_API_KEY", ""),
			Model:       getEnv("PIPELINE_LLM_MODEL", "llama-3.3-70b-versatile"),
			Temperature: getEnvAsFloat32("PIPELINE_LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("PIPELINE_LLM_TIMEOUT", 60*time.Second),
			AllowStub:   getEnvAsBool("PIPELINE_LLM_ALLOW_STUB", false),
			MaxAttempts: getEnvAsInt("PIPELINE_LLM_MAX_ATTEMPTS", 4),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("PIPELINE_RPM_LIMIT", 30),
			TokensPerMinute:   getEnvAsInt("PIPELINE_TPM_LIMIT", 6000),
			TokensPerDay:      getEnvAsInt("PIPELINE_TPD_LIMIT", 100000),
		},
		Store: StoreConfig{
			DSN: getEnv("PIPELINE_DB_PATH", "./invoices.db"),
		},
		Pipeline: PipelineConfig{
			Workers:               getEnvAsInt("PIPELINE_WORKERS", 1),
			QueueSize:             getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			ProcessTimeout:        getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", 5*time.Minute),
			MaxPages:              getEnvAsInt("PIPELINE_MAX_PAGES", 10),
			MinTextLength:         getEnvAsInt("PIPELINE_TEXT_MIN_LENGTH", 40),
			ApplySummaryOverrides: getEnvAsBool("PIPELINE_SUMMARY_OVERRIDES", false),
		},
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
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
	if c.LLM.APIKey == "" && !c.LLM.AllowStub {
		return NewAppError("CONFIG_ERROR", "PIPELINE_LLM_API_KEY is required unless PIPELINE_LLM_ALLOW_STUB=true", ErrConfiguration)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "PIPELINE_DB_PATH is required", ErrConfiguration)
	}
	if c.Pipeline.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_WORKERS must be >= 1", ErrConfiguration)
	}
	return nil
}
