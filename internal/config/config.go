package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"moodrisk/internal/llm"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Mode            string        `yaml:"mode"` // gin mode: debug, release or test
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"` // SQLite file
	} `yaml:"database"`

	Lexicon struct {
		Path string `yaml:"path"` // empty uses the embedded lexicon
	} `yaml:"lexicon"`

	// Multiple providers configuration, tried in order
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Legacy single provider config (fallback)
	Gemini struct {
		APIKey            string `yaml:"api_key"`
		ModelName         string `yaml:"model_name"`
		MaxRetries        int    `yaml:"max_retries"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"gemini"`

	MaxFailuresBeforeSwitch int  `yaml:"max_failures_before_switch"`
	RoundRobin              bool `yaml:"round_robin"`

	Analysis struct {
		AITimeout time.Duration `yaml:"ai_timeout"`
	} `yaml:"analysis"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`

	Metrics struct {
		Disabled  bool   `yaml:"disabled"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes a YAML document and fills in defaults. ${VAR} references in API keys are expanded.
func Parse(r io.Reader) (*Config, error) {
	config := &Config{}

	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Server.Mode == "" {
		config.Server.Mode = "release"
	}

	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 5 * time.Second
	}

	if config.Database.Path == "" {
		config.Database.Path = "./data/moodrisk.db"
	}

	if config.Gemini.ModelName == "" {
		config.Gemini.ModelName = "gemini-2.0-flash"
	}

	if config.Gemini.MaxRetries == 0 {
		config.Gemini.MaxRetries = 3
	}

	if config.Gemini.RequestsPerMinute == 0 {
		config.Gemini.RequestsPerMinute = 8
	}

	if config.MaxFailuresBeforeSwitch == 0 {
		config.MaxFailuresBeforeSwitch = 3
	}

	if config.Analysis.AITimeout == 0 {
		config.Analysis.AITimeout = 30 * time.Second
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "moodrisk"
	}

	// Expand environment variables in provider API keys
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)

	return config, nil
}

// GeminiConfigured reports whether the legacy single provider block carries a usable key
func (c *Config) GeminiConfigured() bool {
	return c.Gemini.APIKey != "" && c.Gemini.APIKey != "YOUR_API_KEY_HERE"
}
