package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Collector CollectorConfig `yaml:"collector"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// IngestConfig contains daily stats ingest settings
type IngestConfig struct {
	Brand               string  `yaml:"brand"`
	AnomalyThresholdPct float64 `yaml:"anomaly_threshold_pct"`
	DailyRunEnabled     bool    `yaml:"daily_run_enabled"`
	DailyRunTime        string  `yaml:"daily_run_time"`
	ScoreWeights        Weights `yaml:"score_weights"`
}

// Weights are the composite scoring weights. Zero values fall back to the
// documented defaults in the stats package.
type Weights struct {
	Premium  float64 `yaml:"premium"`
	Scarcity float64 `yaml:"scarcity"`
	Velocity float64 `yaml:"velocity"`
}

// CollectorConfig contains marketplace collector settings
type CollectorConfig struct {
	Enabled             bool   `yaml:"enabled"`
	SearchBaseURL       string `yaml:"search_base_url"`
	RequestDelaySeconds int    `yaml:"request_delay_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	MaxListingsPerModel int    `yaml:"max_listings_per_model"`
	UserAgent           string `yaml:"user_agent"`
}

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level        string `yaml:"level"`
	LogRequests  bool   `yaml:"log_requests"`
	LogResponses bool   `yaml:"log_responses"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Brand:               "rolex",
			AnomalyThresholdPct: 25.0,
			DailyRunEnabled:     false,
			DailyRunTime:        "03:00",
		},
		Collector: CollectorConfig{
			Enabled:             false,
			RequestDelaySeconds: 2,
			TimeoutSeconds:      30,
			MaxRetries:          3,
			MaxListingsPerModel: 50,
			UserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			RequestsPerHour:   1200,
			RequestsPerDay:    5000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
	}
}

// LoadEnv loads .env files into the process environment so database
// credentials can stay out of the YAML config. Missing files are ignored.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	// Read file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// GetRequestDelay returns the request delay as a duration
func (c *CollectorConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySeconds) * time.Second
}

// GetTimeout returns the timeout as a duration
func (c *CollectorConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
