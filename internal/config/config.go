package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "pupilflow/internal/errors"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PUPILFLOW"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Cache    CacheConfig    `yaml:"cache" envconfig:"CACHE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"100"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pupilflow.log"`
}

// DataConfig locates the inputs of the pipeline
type DataConfig struct {
	Dir             string `yaml:"dir" envconfig:"DIR" default:"data"`
	CoordinatesFile string `yaml:"coordinates_file" envconfig:"COORDINATES_FILE" default:"data/postcode_coords.csv"`
	ExportDir       string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"exports"`
}

// PipelineConfig bounds the load
type PipelineConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"4"`
	MaxRows int `yaml:"max_rows" envconfig:"MAX_ROWS" default:"5000000"`
}

// CacheConfig controls the assembled dataset cache
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	Size     int           `yaml:"size" envconfig:"SIZE" default:"4"`
	Watch    bool          `yaml:"watch" envconfig:"WATCH" default:"true"`
	Debounce time.Duration `yaml:"debounce" envconfig:"DEBOUNCE" default:"500ms"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads the environment configuration and merges configFile under it.
// An empty configFile skips the file layer.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs lets an explicitly set environment variable win over the file.
// envconfig has already applied defaults, so a field counts as set when its
// variable is present in the environment.
func mergeConfigs(fileConfig, envConfig Config) Config {
	pick := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	merged := envConfig
	if !pick("SERVER_PORT") && fileConfig.Server.Port != 0 {
		merged.Server.Port = fileConfig.Server.Port
	}
	if !pick("SERVER_READ_TIMEOUT") && fileConfig.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if !pick("SERVER_WRITE_TIMEOUT") && fileConfig.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if !pick("LOGGING_LEVEL") && fileConfig.Logging.Level != "" {
		merged.Logging.Level = fileConfig.Logging.Level
	}
	if !pick("LOGGING_FORMAT") && fileConfig.Logging.Format != "" {
		merged.Logging.Format = fileConfig.Logging.Format
	}
	if !pick("LOGGING_OUTPUT") && fileConfig.Logging.Output != "" {
		merged.Logging.Output = fileConfig.Logging.Output
	}
	if !pick("LOGGING_FILE_PATH") && fileConfig.Logging.FilePath != "" {
		merged.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if !pick("DATA_DIR") && fileConfig.Data.Dir != "" {
		merged.Data.Dir = fileConfig.Data.Dir
	}
	if !pick("DATA_COORDINATES_FILE") && fileConfig.Data.CoordinatesFile != "" {
		merged.Data.CoordinatesFile = fileConfig.Data.CoordinatesFile
	}
	if !pick("DATA_EXPORT_DIR") && fileConfig.Data.ExportDir != "" {
		merged.Data.ExportDir = fileConfig.Data.ExportDir
	}
	if !pick("PIPELINE_WORKERS") && fileConfig.Pipeline.Workers != 0 {
		merged.Pipeline.Workers = fileConfig.Pipeline.Workers
	}
	if !pick("PIPELINE_MAX_ROWS") && fileConfig.Pipeline.MaxRows != 0 {
		merged.Pipeline.MaxRows = fileConfig.Pipeline.MaxRows
	}
	if !pick("CACHE_SIZE") && fileConfig.Cache.Size != 0 {
		merged.Cache.Size = fileConfig.Cache.Size
	}

	return merged
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data directory must be set")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRows < 0 {
		return fmt.Errorf("pipeline max rows must not be negative, got %d", c.Pipeline.MaxRows)
	}
	if c.Cache.Enabled && c.Cache.Size < 1 {
		return fmt.Errorf("cache size must be at least 1 when the cache is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
		c.Logging.Format = strings.ToLower(c.Logging.Format)
	default:
		c.Logging.Format = "json"
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/pupilflow.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p, ok := os.LookupEnv(EnvPrefix + "_CONFIG"); ok {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/pupilflow.log",
		},
		Data: DataConfig{
			Dir:             "data",
			CoordinatesFile: "data/postcode_coords.csv",
			ExportDir:       "exports",
		},
		Pipeline: PipelineConfig{
			Workers: 4,
			MaxRows: 5_000_000,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Size:     4,
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
	}
}
