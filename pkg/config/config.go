package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the blog archiver
type Config struct {
	// Scrape pacing and pagination
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Storage backend settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScrapeConfig holds request pacing and pagination configuration
type ScrapeConfig struct {
	MinDelay    time.Duration `yaml:"min_delay" env:"BLOGARCHIVE_MIN_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"BLOGARCHIVE_MAX_DELAY"`
	BurstEvery  int           `yaml:"burst_every" env:"BLOGARCHIVE_BURST_EVERY"`
	BurstPause  time.Duration `yaml:"burst_pause" env:"BLOGARCHIVE_BURST_PAUSE"`
	MaxPages    int           `yaml:"max_pages" env:"BLOGARCHIVE_MAX_PAGES"`
	PageTimeout time.Duration `yaml:"page_timeout" env:"BLOGARCHIVE_PAGE_TIMEOUT"`
	UserAgent   string        `yaml:"user_agent" env:"BLOGARCHIVE_USER_AGENT"`
}

// DownloadConfig holds image download configuration
type DownloadConfig struct {
	Concurrency     int           `yaml:"concurrency" env:"BLOGARCHIVE_CONCURRENCY"`
	Timeout         time.Duration `yaml:"timeout" env:"BLOGARCHIVE_DOWNLOAD_TIMEOUT"`
	RetryAttempts   int           `yaml:"retry_attempts" env:"BLOGARCHIVE_RETRY_ATTEMPTS"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" env:"BLOGARCHIVE_RETRY_BASE_DELAY"`
	CacheIndexPath  string        `yaml:"cache_index_path" env:"BLOGARCHIVE_CACHE_INDEX"`
}

// StorageConfig selects and configures the storage backend. The backend is
// chosen here explicitly, never by probing the filesystem.
type StorageConfig struct {
	Backend string      `yaml:"backend" env:"BLOGARCHIVE_STORAGE_BACKEND"` // "local" or "minio"
	Root    string      `yaml:"root" env:"BLOGARCHIVE_STORAGE_ROOT"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig holds object storage connection settings
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"BLOGARCHIVE_MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"BLOGARCHIVE_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"BLOGARCHIVE_MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BLOGARCHIVE_MINIO_BUCKET"`
	Secure    bool   `yaml:"secure" env:"BLOGARCHIVE_MINIO_SECURE"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"BLOGARCHIVE_DB_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" env:"BLOGARCHIVE_LOG_LEVEL"`
	File  string `yaml:"file" env:"BLOGARCHIVE_LOG_FILE"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			MinDelay:    2 * time.Second,
			MaxDelay:    4 * time.Second,
			BurstEvery:  10,
			BurstPause:  5 * time.Second,
			MaxPages:    100,
			PageTimeout: 30 * time.Second,
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Download: DownloadConfig{
			Concurrency:    3,
			Timeout:        10 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: time.Second,
			CacheIndexPath: "./data/image_cache.json",
		},
		Storage: StorageConfig{
			Backend: "local",
			Root:    "./data/images",
		},
		Database: DatabaseConfig{
			Path: "./data/blog.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".blogarchive.yaml",
		".blogarchive.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "blogarchive", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "blogarchive", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".blogarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Scrape.MinDelay < 0 || c.Scrape.MaxDelay < c.Scrape.MinDelay {
		errs = append(errs, errors.New("scrape delays must satisfy 0 <= min_delay <= max_delay"))
	}
	if c.Scrape.BurstEvery <= 0 {
		errs = append(errs, errors.New("burst_every must be positive"))
	}
	if c.Scrape.MaxPages <= 0 {
		errs = append(errs, errors.New("max_pages must be positive"))
	}
	if c.Scrape.PageTimeout <= 0 {
		errs = append(errs, errors.New("page_timeout must be positive"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("download concurrency must be positive"))
	}
	if c.Download.Concurrency > 10 {
		errs = append(errs, errors.New("download concurrency should not exceed 10"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Root == "" {
			errs = append(errs, errors.New("storage root is required for the local backend"))
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			errs = append(errs, errors.New("minio endpoint and bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if root, ok := flags["storage-root"].(string); ok && root != "" {
		c.Storage.Root = root
	}
	if dbPath, ok := flags["db-path"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if concurrent, ok := flags["concurrency"].(int); ok && concurrent > 0 {
		c.Download.Concurrency = concurrent
	}
	if retries, ok := flags["retry-attempts"].(int); ok && retries > 0 {
		c.Download.RetryAttempts = retries
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".blogarchive.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
