package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "OPUSDL_"

// Config holds all configuration options for opusdl
type Config struct {
	// Bilibili session and request settings
	Bilibili BilibiliConfig `yaml:"bilibili" json:"bilibili"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Transport-level retries
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Download archive
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BilibiliConfig holds the session cookies and client identity
type BilibiliConfig struct {
	SessData  string `yaml:"sessdata" json:"sessdata"`
	BiliJct   string `yaml:"bili_jct" json:"bili_jct"`
	UserID    string `yaml:"dede_user_id" json:"dede_user_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// ChallengeCooldown is how long to wait before re-fetching a page that
	// was replaced by a risk-control interstitial.
	ChallengeCooldown time.Duration `yaml:"challenge_cooldown" json:"challenge_cooldown"`
}

// Cookies returns the configured session cookies keyed by cookie name.
func (b BilibiliConfig) Cookies() map[string]string {
	cookies := make(map[string]string)
	if b.SessData != "" {
		cookies["SESSDATA"] = b.SessData
	}
	if b.BiliJct != "" {
		cookies["bili_jct"] = b.BiliJct
	}
	if b.UserID != "" {
		cookies["DedeUserID"] = b.UserID
	}
	return cookies
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	// API and page requests wait a random interval in [MinInterval, MaxInterval].
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval" json:"max_interval"`

	DownloadsPerMinute int `yaml:"downloads_per_minute" json:"downloads_per_minute"`
}

// RetryConfig holds retry configuration for transport failures
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	DirectoryPattern  string `yaml:"directory_pattern" json:"directory_pattern"`
	FileNamePattern   string `yaml:"file_name_pattern" json:"file_name_pattern"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
	WriteMetadata     bool   `yaml:"write_metadata" json:"write_metadata"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// ArchiveConfig holds the download archive location. An empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bilibili: BilibiliConfig{
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			ChallengeCooldown: 300 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinInterval:        3 * time.Second,
			MaxInterval:        6 * time.Second,
			DownloadsPerMinute: 60,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 4,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Output: OutputConfig{
			BaseDirectory:    "./downloads",
			DirectoryPattern: "{category}/{username}",
			FileNamePattern:  "{id}_{num}.{extension}",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     60 * time.Second,
		},
		Archive: ArchiveConfig{
			Path: defaultArchivePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultArchivePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opusdl", "archive.sqlite3")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Bilibili.SessData, "SESSDATA")
	setString(&c.Bilibili.BiliJct, "BILI_JCT")
	setString(&c.Bilibili.UserID, "DEDE_USER_ID")
	setString(&c.Bilibili.UserAgent, "USER_AGENT")
	setString(&c.Output.BaseDirectory, "OUTPUT_DIR")
	setString(&c.Archive.Path, "ARCHIVE")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")

	if v := os.Getenv(envPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENT_DOWNLOADS: %w", envPrefix, err))
		} else if n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv(envPrefix + "CHALLENGE_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCHALLENGE_COOLDOWN: %w", envPrefix, err))
		} else {
			c.Bilibili.ChallengeCooldown = d
		}
	}
	if v := os.Getenv(envPrefix + "WRITE_METADATA"); v != "" {
		c.Output.WriteMetadata = strings.ToLower(v) == "true"
	}

	return errors.Join(errs...)
}

func setString(dst *string, name string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
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

// FindConfigFile returns the first existing config file in the standard
// locations, or "" when there is none
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".opusdl.yaml",
		".opusdl.yml",
		filepath.Join(home, ".config", "opusdl", "config.yaml"),
		filepath.Join(home, ".config", "opusdl", "config.yml"),
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

	if c.Bilibili.ChallengeCooldown <= 0 {
		errs = append(errs, errors.New("challenge cooldown must be positive"))
	}

	if c.RateLimit.MinInterval < 0 {
		errs = append(errs, errors.New("minimum request interval cannot be negative"))
	}
	if c.RateLimit.MaxInterval < c.RateLimit.MinInterval {
		errs = append(errs, errors.New("maximum request interval must not be below the minimum"))
	}
	if c.RateLimit.DownloadsPerMinute <= 0 {
		errs = append(errs, errors.New("downloads per minute must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FileNamePattern == "" {
		errs = append(errs, errors.New("file name pattern is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Cookies end up in this file, keep it private.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["sessdata"].(string); ok && v != "" {
		c.Bilibili.SessData = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["archive"].(string); ok {
		c.Archive.Path = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["write-metadata"].(bool); ok {
		c.Output.WriteMetadata = v
	}
	if v, ok := flags["cooldown"].(time.Duration); ok && v > 0 {
		c.Bilibili.ChallengeCooldown = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".opusdl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
