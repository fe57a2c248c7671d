package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	configDirName = "gh-slides"
	defaultConfig = ".config"
)

var configFiles = []string{
	"config.yaml",
	"config.yml",
	"config.toml",
}

// Config represents the structure of the configuration file used by the application.
type Config struct {
	Provider   Provider          `yaml:"provider" toml:"provider"`
	Generation Generation        `yaml:"generation" toml:"generation"`
	Images     Images            `yaml:"images" toml:"images"`
	Search     Search            `yaml:"search" toml:"search"`
	Render     Render            `yaml:"render" toml:"render"`
	Log        Log               `yaml:"log" toml:"log"`
	Prompts    map[string]Prompt `yaml:"prompts" toml:"prompts"`
}

// Provider configures the OpenAI-compatible chat completions endpoint.
type Provider struct {
	BaseURL   string        `yaml:"base_url" toml:"base_url" default:"https://openrouter.ai/api/v1"`
	Model     string        `yaml:"model" toml:"model" default:"openai/gpt-4o-mini"`
	APIKey    string        `yaml:"api_key" toml:"api_key"`
	APIKeyEnv string        `yaml:"api_key_env" toml:"api_key_env" default:"OPENROUTER_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout" default:"5m"`
}

// Generation holds the defaults for a new presentation.
type Generation struct {
	Slides   int    `yaml:"slides" toml:"slides" default:"8"`
	Language string `yaml:"language" toml:"language" default:"en-US"`
	Tone     string `yaml:"tone" toml:"tone" default:"professional"`
}

// Images configures the image collaborator.
type Images struct {
	Source         string        `yaml:"source" toml:"source" default:"ai"`
	Model          string        `yaml:"model" toml:"model" default:"flux"`
	Width          int           `yaml:"width" toml:"width" default:"1024"`
	Height         int           `yaml:"height" toml:"height" default:"768"`
	Concurrency    int           `yaml:"concurrency" toml:"concurrency" default:"3"`
	RatePerSecond  float64       `yaml:"rate_per_second" toml:"rate_per_second" default:"2"`
	Retries        int           `yaml:"retries" toml:"retries" default:"2"`
	Timeout        time.Duration `yaml:"timeout" toml:"timeout" default:"90s"`
	UnsplashKeyEnv string        `yaml:"unsplash_key_env" toml:"unsplash_key_env" default:"UNSPLASH_ACCESS_KEY"`
}

// Search configures web research for outlines.
type Search struct {
	BaseURL    string        `yaml:"base_url" toml:"base_url" default:"https://api.tavily.com"`
	KeyEnv     string        `yaml:"search_key_env" toml:"search_key_env" default:"TAVILY_API_KEY"`
	MaxResults int           `yaml:"max_results" toml:"max_results" default:"3"`
	Depth      string        `yaml:"depth" toml:"depth" default:"basic"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout" default:"15s"`
}

// Render configures output.
type Render struct {
	Format string `yaml:"format" toml:"format" default:"markdown"`
	Wrap   int    `yaml:"wrap" toml:"wrap" default:"120"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level" toml:"level" default:"info"`
}

// Prompt is a named prompt preset exposed as a command.
type Prompt struct {
	Prompt string `yaml:"prompt" toml:"prompt"`
	Model  string `yaml:"model" toml:"model"`
}

// configResult is a struct used to return the configuration and any error that occurs during loading.
type configResult struct {
	config *Config
	err    error
}

// NewDefaultConfig creates a configuration with every default applied.
func NewDefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	cfg.Prompts = map[string]Prompt{}
	return cfg, nil
}

// Dir retrieves the path to the configuration directory based on the XDG_CONFIG_HOME environment variable.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(home, defaultConfig)
	}

	return filepath.Join(configHome, configDirName), nil
}

// tryLoadConfig attempts to load a configuration file from the specified path.
func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if strings.HasSuffix(path, ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fill whatever the file left unset.
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = map[string]Prompt{}
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the user's home directory, with a timeout.
func LoadConfig(ctx context.Context) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(chan configResult, 1)

	go func() {
		cfg, err := loadConfigFiles(ctx)
		result <- configResult{config: cfg, err: err}
	}()

	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case r := <-result:
		return r.config, r.err
	}
}

// loadConfigFiles loads configuration files from the user's home directory.
func loadConfigFiles(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before loading config: %w", err)
	}

	configDir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Return default config early if directory doesn't exist
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return NewDefaultConfig()
	}

	for _, filename := range configFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := tryLoadConfig(filepath.Join(configDir, filename))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	return NewDefaultConfig()
}
