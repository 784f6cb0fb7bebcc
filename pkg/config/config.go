package config

import (
	"fmt"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the opinions ETL engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration (read-side API and ETL trigger endpoint)
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// RunOnStart triggers one pipeline run as soon as the host comes up.
	RunOnStart bool `yaml:"run_on_start" env:"ETL_RUN_ON_START" env-default:"false"`

	// Etl holds the pipeline execution knobs.
	Etl EtlConfig `yaml:"etl"`

	// Source extractor configuration, one section per source type.
	CSVSource      CSVSourceConfig      `yaml:"csv_source"`
	JSONSource     JSONSourceConfig     `yaml:"json_source"`
	DatabaseSource DatabaseSourceConfig `yaml:"database_source"`
	APISource      APISourceConfig      `yaml:"api_source"`

	// Database configuration for the warehouse (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`
}

// EtlConfig holds the pipeline execution knobs.
type EtlConfig struct {
	// BatchSize is the chunk size for the bulk fact insert.
	BatchSize int `yaml:"batch_size" env:"ETL_BATCH_SIZE" env-default:"10000"`

	// MaxParallelism bounds worker counts in the extraction and validation
	// phases. Zero means one worker per CPU.
	MaxParallelism int `yaml:"max_parallelism" env:"ETL_MAX_PARALLELISM" env-default:"0"`

	// ParallelExtraction runs source extractors concurrently when true,
	// one after another when false. Failure isolation is identical in
	// both modes.
	ParallelExtraction bool `yaml:"parallel_extraction" env:"ETL_PARALLEL_EXTRACTION" env-default:"true"`

	// StagingPath is reserved for temporary staging files.
	StagingPath string `yaml:"staging_path" env:"ETL_STAGING_PATH" env-default:"./staging"`
}

// Parallelism returns the effective worker bound.
func (c *EtlConfig) Parallelism() int {
	if c.MaxParallelism > 0 {
		return c.MaxParallelism
	}
	return runtime.NumCPU()
}

// CSVSourceConfig configures the internal-survey CSV extractor.
type CSVSourceConfig struct {
	Enabled   bool   `yaml:"enabled" env:"CSV_SOURCE_ENABLED" env-default:"true"`
	FilePath  string `yaml:"file_path" env:"CSV_SOURCE_FILE_PATH" env-default:"data/surveys.csv"`
	Delimiter string `yaml:"delimiter" env:"CSV_SOURCE_DELIMITER" env-default:","`
	HasHeader bool   `yaml:"has_header" env:"CSV_SOURCE_HAS_HEADER" env-default:"true"`
}

// JSONSourceConfig configures the JSON file extractor.
type JSONSourceConfig struct {
	Enabled  bool   `yaml:"enabled" env:"JSON_SOURCE_ENABLED" env-default:"false"`
	FilePath string `yaml:"file_path" env:"JSON_SOURCE_FILE_PATH" env-default:"data/opinions.json"`
}

// DatabaseSourceConfig configures the relational (SQL Server) review
// database extractor.
type DatabaseSourceConfig struct {
	Enabled bool `yaml:"enabled" env:"DB_SOURCE_ENABLED" env-default:"true"`

	// ConnectionString is secret-bearing and therefore env-only.
	ConnectionString string `yaml:"-" env:"DB_SOURCE_CONNECTION_STRING"`

	Query          string `yaml:"query" env:"DB_SOURCE_QUERY" env-default:"SELECT ProductId, ProductName, Category, Brand, CustomerId, CustomerName, Country, City, Segment, AgeRange, ReviewDate, Rating, SentimentScore, Comment FROM WebReviews"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"DB_SOURCE_TIMEOUT_SECONDS" env-default:"300"`
}

// APISourceConfig configures the REST API extractor.
type APISourceConfig struct {
	Enabled  bool   `yaml:"enabled" env:"API_SOURCE_ENABLED" env-default:"true"`
	BaseURL  string `yaml:"base_url" env:"API_SOURCE_BASE_URL" env-default:""`
	Endpoint string `yaml:"endpoint" env:"API_SOURCE_ENDPOINT" env-default:"/opinions"`

	// APIKey is sent as the X-API-Key header; env-only.
	APIKey string `yaml:"-" env:"API_SOURCE_API_KEY"`

	TimeoutSeconds int `yaml:"timeout_seconds" env:"API_SOURCE_TIMEOUT_SECONDS" env-default:"300"`
	MaxRetries     int `yaml:"max_retries" env:"API_SOURCE_MAX_RETRIES" env-default:"3"`
}

// DatabaseConfig holds PostgreSQL warehouse configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"opiniondw"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dw_opinions"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, DB_SOURCE_CONNECTION_STRING, API_SOURCE_API_KEY) must
// come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Etl.BatchSize <= 0 {
		return fmt.Errorf("etl.batch_size must be positive, got %d", c.Etl.BatchSize)
	}
	if c.Etl.MaxParallelism < 0 {
		return fmt.Errorf("etl.max_parallelism must not be negative, got %d", c.Etl.MaxParallelism)
	}
	if len(c.CSVSource.Delimiter) != 1 {
		return fmt.Errorf("csv_source.delimiter must be a single character, got %q", c.CSVSource.Delimiter)
	}
	if c.DatabaseSource.Enabled && c.DatabaseSource.ConnectionString == "" {
		return fmt.Errorf("database_source is enabled but DB_SOURCE_CONNECTION_STRING is not set")
	}
	if c.APISource.Enabled && c.APISource.BaseURL == "" {
		return fmt.Errorf("api_source is enabled but base_url is not set")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the warehouse.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
