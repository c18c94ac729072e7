package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModel   = "google/gemma-3-4b-it:free"
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 90 * time.Second
)

// Config is everything the bot needs at startup. Values come from an
// optional YAML file with env vars layered on top; the two credentials are
// required, the rest has defaults.
type Config struct {
	TelegramToken  string        `yaml:"telegram_token"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StrictSteps    bool          `yaml:"strict_steps"`
	UploadDir      string        `yaml:"upload_dir"`
}

// Load builds the config from CARBONBOT_CONFIG (if set) and the
// environment.
func Load() (*Config, error) {
	cfg := &Config{
		Model:          defaultModel,
		BaseURL:        defaultBaseURL,
		RequestTimeout: defaultTimeout,
		UploadDir:      os.TempDir(),
	}

	if path := os.Getenv("CARBONBOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if v := os.Getenv("CARBONBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("CARBONBOT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CARBONBOT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CARBONBOT_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("CARBONBOT_STRICT_STEPS"); v == "1" || v == "true" {
		cfg.StrictSteps = true
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("CARBONBOT_TELEGRAM_TOKEN environment variable not set")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}

	return cfg, nil
}
