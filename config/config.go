// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"intake-backend/provider"
	"intake-backend/storage"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// DefaultPatientID, when set, is used for requests that omit a patient.
	DefaultPatientID string `mapstructure:"DEFAULT_PATIENT_ID"`

	ExtractionProvider string        `mapstructure:"EXTRACTION_PROVIDER"`
	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel        string        `mapstructure:"OPENAI_MODEL"`
	GeminiAPIKey       string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel        string        `mapstructure:"GEMINI_MODEL"`
	ProviderTimeout    time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	ProviderRPS        float64       `mapstructure:"PROVIDER_RPS"`
	ProviderBurst      int           `mapstructure:"PROVIDER_BURST"`
	ProviderMaxTokens  int           `mapstructure:"PROVIDER_MAX_TOKENS"`

	BatchCacheTTL time.Duration `mapstructure:"BATCH_CACHE_TTL"`

	StorageType        string `mapstructure:"STORAGE_TYPE"`
	StorageLocalPath   string `mapstructure:"STORAGE_LOCAL_PATH"`
	AWSS3Bucket        string `mapstructure:"AWS_S3_BUCKET"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	MaxUploadBytes     int64  `mapstructure:"MAX_UPLOAD_BYTES"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_PRETTY",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_PATIENT_ID",
	"EXTRACTION_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"GEMINI_API_KEY", "GEMINI_MODEL",
	"PROVIDER_TIMEOUT", "PROVIDER_RPS", "PROVIDER_BURST", "PROVIDER_MAX_TOKENS",
	"BATCH_CACHE_TTL",
	"STORAGE_TYPE", "STORAGE_LOCAL_PATH",
	"AWS_S3_BUCKET", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"MAX_UPLOAD_BYTES",
}

// Load reads .env files (if present) into the environment, then the
// environment into a Config. It does not validate; call Validate.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine; real environment variables win over them.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("EXTRACTION_PROVIDER", provider.NameOpenAI)
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	v.SetDefault("PROVIDER_TIMEOUT", "60s")
	v.SetDefault("PROVIDER_RPS", 1)
	v.SetDefault("PROVIDER_BURST", 2)
	v.SetDefault("PROVIDER_MAX_TOKENS", 4000)
	v.SetDefault("BATCH_CACHE_TTL", "10m")
	v.SetDefault("STORAGE_TYPE", string(storage.StorageTypeLocal))
	v.SetDefault("STORAGE_LOCAL_PATH", "./storage/documents")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ExtractionProvider = strings.ToLower(strings.TrimSpace(cfg.ExtractionProvider))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	switch c.ExtractionProvider {
	case provider.NameOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EXTRACTION_PROVIDER is %q", c.ExtractionProvider)
		}
	case provider.NameGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EXTRACTION_PROVIDER is %q", c.ExtractionProvider)
		}
	default:
		return fmt.Errorf("EXTRACTION_PROVIDER must be %q or %q, got %q", provider.NameOpenAI, provider.NameGemini, c.ExtractionProvider)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}

	if c.DefaultPatientID != "" {
		if _, err := uuid.Parse(c.DefaultPatientID); err != nil {
			return fmt.Errorf("DEFAULT_PATIENT_ID is not a valid UUID: %w", err)
		}
	}

	switch storage.StorageType(c.StorageType) {
	case storage.StorageTypeLocal:
	case storage.StorageTypeS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_TYPE is s3")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be \"local\" or \"s3\", got %q", c.StorageType)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// DefaultPatient returns the configured single-tenant patient, or nil.
func (c *Config) DefaultPatient() *uuid.UUID {
	if c.DefaultPatientID == "" {
		return nil
	}
	id, err := uuid.Parse(c.DefaultPatientID)
	if err != nil {
		return nil
	}
	return &id
}

// Provider returns the extraction provider settings.
func (c *Config) Provider() provider.Config {
	cfg := provider.Config{
		Name:              c.ExtractionProvider,
		MaxTokens:         c.ProviderMaxTokens,
		Timeout:           c.ProviderTimeout,
		RequestsPerSecond: c.ProviderRPS,
		Burst:             c.ProviderBurst,
	}
	switch c.ExtractionProvider {
	case provider.NameGemini:
		cfg.APIKey = c.GeminiAPIKey
		cfg.Model = c.GeminiModel
	default:
		cfg.APIKey = c.OpenAIAPIKey
		cfg.BaseURL = c.OpenAIBaseURL
		cfg.Model = c.OpenAIModel
	}
	return cfg
}

// Storage returns the raw document storage settings.
func (c *Config) Storage() storage.StorageConfig {
	return storage.StorageConfig{
		Type:         storage.StorageType(c.StorageType),
		LocalPath:    c.StorageLocalPath,
		S3Bucket:     c.AWSS3Bucket,
		S3Region:     c.AWSRegion,
		AWSAccessKey: c.AWSAccessKeyID,
		AWSSecretKey: c.AWSSecretAccessKey,
	}
}
