// Package config loads GrudAI server configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all GrudAI configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Uploads UploadsConfig `yaml:"uploads"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the upstream completion provider.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"` // default when a project has none
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	SiteURL     string  `yaml:"site_url"`  // HTTP-Referer header, optional
	SiteName    string  `yaml:"site_name"` // X-Title header, optional
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// UploadsConfig configures reference file uploads.
type UploadsConfig struct {
	Dir         string `yaml:"dir"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	ContextChars int   `yaml:"context_chars"` // per-file budget for chat context
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug, info, warn, error
	Dir     string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "GrudAI",
		Version: "1.0.0",

		Server: ServerConfig{
			Addr:            ":3001",
			ReadTimeout:     "30s",
			ShutdownTimeout: "10s",
		},

		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-3.5-turbo",
			Timeout:     "120s",
			MaxTokens:   1000,
			Temperature: 0.7,
			SiteName:    "GrudAI",
		},

		Storage: StorageConfig{
			DatabasePath: "data/grudai.db",
		},

		Uploads: UploadsConfig{
			Dir:          "data/uploads",
			MaxSizeMB:    10,
			ContextChars: 4000,
		},

		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     "data/logs",
		},
	}
}

// Load loads configuration from a YAML file.
// Returns defaults if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("OPENROUTER_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("DEFAULT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("GRUDAI_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if addr := os.Getenv("GRUDAI_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	mb := c.Uploads.MaxSizeMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}
