// Package config centralises environment-derived configuration for the task runner.
// A Config is constructed once at process start and passed into each component's
// constructor; core logic never reads the environment directly.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Provider selects the LLM backend for the structured plan executor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// LLMConfig holds credentials and model selection for the planning backend.
type LLMConfig struct {
	Provider Provider `yaml:"provider"`
	APIKey   string   `yaml:"api_key"`
	BaseURL  string   `yaml:"base_url"`
	Model    string   `yaml:"model"`
}

// GitConfig holds the bot identity used for commits and the default API token.
type GitConfig struct {
	UserName string `yaml:"user_name"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
}

// WebhookConfig holds the outbound status notification settings.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// StatusServerConfig controls the embedded status endpoint.
type StatusServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Config is the top-level configuration for one orchestrator process.
type Config struct {
	LLM           LLMConfig          `yaml:"llm"`
	Git           GitConfig          `yaml:"git"`
	Webhook       WebhookConfig      `yaml:"webhook"`
	StatusServer  StatusServerConfig `yaml:"status_server"`
	WorkspaceDir  string             `yaml:"workspace_dir"`
	MaxIterations int                `yaml:"max_iterations"`

	// CoderCommand, when set, switches the code-change executor to the
	// delegated CLI variant (e.g. "claude"). Empty selects LLM planning.
	CoderCommand string `yaml:"coder_command"`
}

// FromEnv builds a Config from environment variables, applying defaults where the
// variable is unset. If AICODER_CONFIG names a YAML file, its values are loaded
// first and environment variables override them.
func FromEnv() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("AICODER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: ProviderAnthropic,
			Model:    "claude-3-sonnet-20240229",
		},
		Git: GitConfig{
			UserName: "ai-coder-bot",
			Email:    "ai-coder@example.com",
		},
		StatusServer: StatusServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		WorkspaceDir:  "/workspace",
		MaxIterations: 3,
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.BaseURL, "ANTHROPIC_BASE_URL")
	setString(&cfg.LLM.Model, "MODEL_NAME")
	if provider := os.Getenv("MODEL_PROVIDER"); provider != "" {
		cfg.LLM.Provider = Provider(provider)
	}

	setString(&cfg.Git.UserName, "GIT_USERNAME")
	setString(&cfg.Git.Email, "GIT_EMAIL")
	setString(&cfg.Git.APIToken, "GITLAB_API_TOKEN")

	setString(&cfg.Webhook.URL, "WEBHOOK_URL")
	setString(&cfg.Webhook.Secret, "WEBHOOK_SECRET")

	setBool(&cfg.StatusServer.Enabled, "STATUS_SERVER_ENABLED")
	setString(&cfg.StatusServer.Host, "STATUS_SERVER_HOST")
	setInt(&cfg.StatusServer.Port, "STATUS_SERVER_PORT")

	setString(&cfg.WorkspaceDir, "WORKSPACE_DIR")
	setInt(&cfg.MaxIterations, "MAX_ITERATIONS")
	setString(&cfg.CoderCommand, "CODER_COMMAND")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks that the required configuration values are present.
func (c *Config) Validate() error {
	if c.CoderCommand == "" && c.LLM.APIKey == "" {
		return fmt.Errorf("an LLM API key is required when no coder command is configured")
	}
	if c.Webhook.URL == "" {
		return fmt.Errorf("a webhook URL is required for status reporting")
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	return nil
}

// GitIdentity returns the bot identity used as author and committer.
func (c *Config) GitIdentity() (name, email string) {
	return c.Git.UserName, c.Git.Email
}
