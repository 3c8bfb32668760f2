package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Limits    LimitsConfig    `yaml:"limits"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	History   HistoryConfig   `yaml:"history"`
	Transcode TranscodeConfig `yaml:"transcode"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// LimitsConfig holds per-client rate limit configuration.
type LimitsConfig struct {
	Window        time.Duration `yaml:"window" envconfig:"LIMITS_WINDOW" default:"20s"`
	MaxRequests   int           `yaml:"max_requests" envconfig:"LIMITS_MAX_REQUESTS" default:"15"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"LIMITS_SWEEP_INTERVAL" default:"5m"`
	RedisURL      string        `yaml:"redis_url" envconfig:"LIMITS_REDIS_URL"`
}

// ExtractorConfig holds settings for the external extraction engine.
type ExtractorConfig struct {
	BinPath           string        `yaml:"bin_path" envconfig:"EXTRACTOR_BIN_PATH" default:"yt-dlp"`
	SocketTimeout     time.Duration `yaml:"socket_timeout" envconfig:"EXTRACTOR_SOCKET_TIMEOUT" default:"10s"`
	MaxFileMB         int           `yaml:"max_file_mb" envconfig:"EXTRACTOR_MAX_FILE_MB" default:"50"`
	MaxProfileEntries int           `yaml:"max_profile_entries" envconfig:"EXTRACTOR_MAX_PROFILE_ENTRIES" default:"100"`
	LaunchRate        float64       `yaml:"launch_rate" envconfig:"EXTRACTOR_LAUNCH_RATE" default:"4"`
	LaunchBurst       int           `yaml:"launch_burst" envconfig:"EXTRACTOR_LAUNCH_BURST" default:"8"`
	UserAgent         string        `yaml:"user_agent" envconfig:"EXTRACTOR_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	TempRoot string `yaml:"temp_root" envconfig:"STORAGE_TEMP_ROOT" default:"/tmp/ripclip"`
}

// StreamConfig holds response streaming configuration.
type StreamConfig struct {
	ChunkSize int `yaml:"chunk_size" envconfig:"STREAM_CHUNK_SIZE" default:"1048576"` // 1MB
}

// HistoryConfig holds the download journal configuration.
// The journal is disabled when Path is empty.
type HistoryConfig struct {
	Path          string `yaml:"path" envconfig:"HISTORY_PATH"`
	RetentionDays int    `yaml:"retention_days" envconfig:"HISTORY_RETENTION_DAYS" default:"30"`
}

// TranscodeConfig holds pixel filter transcoding configuration.
type TranscodeConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"TRANSCODE_ENABLED" default:"true"`
	FFmpegPath string `yaml:"ffmpeg_path" envconfig:"TRANSCODE_FFMPEG_PATH" default:"ffmpeg"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Limits.Window <= 0 {
		return fmt.Errorf("LIMITS_WINDOW must be positive")
	}
	if c.Limits.MaxRequests <= 0 {
		return fmt.Errorf("LIMITS_MAX_REQUESTS must be positive")
	}
	if c.Extractor.MaxFileMB <= 0 {
		return fmt.Errorf("EXTRACTOR_MAX_FILE_MB must be positive")
	}
	if c.Extractor.MaxProfileEntries <= 0 {
		return fmt.Errorf("EXTRACTOR_MAX_PROFILE_ENTRIES must be positive")
	}
	if c.Storage.TempRoot == "" {
		return fmt.Errorf("STORAGE_TEMP_ROOT is required")
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("STREAM_CHUNK_SIZE must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
