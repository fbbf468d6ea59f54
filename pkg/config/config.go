package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config holds all paperchat configuration.
type Config struct {
	Listen    string         `yaml:"listen"`
	CachePath string         `yaml:"cache_path"`
	Gemini    GeminiConfig   `yaml:"gemini"`
	Download  DownloadConfig `yaml:"download"`
	Search    SearchConfig   `yaml:"search"`
}

// GeminiConfig identifies the generation backend.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// DownloadConfig bounds PDF downloads from paper sources.
type DownloadConfig struct {
	MaxPDFMB  int64  `yaml:"max_pdf_mb"`
	UserAgent string `yaml:"user_agent"`
}

// SearchConfig points at the trial-registry API specification used by
// the query builder. Optional; a built-in minimal reference is used
// when empty.
type SearchConfig struct {
	APISpecFile string `yaml:"api_spec_file"`
}

var validModels = []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro"}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		CachePath: "paperchat.db",
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-lite",
		},
		Download: DownloadConfig{
			MaxPDFMB:  2000,
			UserAgent: "Mozilla/5.0 (compatible; GiraffeGuru/1.0)",
		},
	}
}

// Load reads a YAML config file, expands environment variables, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is not configured")
	}
	if !slices.Contains(validModels, c.Gemini.Model) {
		return fmt.Errorf("invalid gemini.model %q, valid options: %v", c.Gemini.Model, validModels)
	}
	if c.Download.MaxPDFMB <= 0 {
		return fmt.Errorf("download.max_pdf_mb must be positive")
	}
	return nil
}

// MaxPDFBytes returns the download size bound in bytes.
func (c *Config) MaxPDFBytes() int64 {
	return c.Download.MaxPDFMB * 1024 * 1024
}
