package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete storyqa configuration
type Config struct {
	Service      ServiceConfig     `yaml:"service" mapstructure:"service"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Jira         JiraConfig        `yaml:"jira" mapstructure:"jira"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ServiceConfig points at the remote prediction service
type ServiceConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// RateLimitConfig bounds outbound request rate per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
}

// ConcurrencyConfig bounds batch fan-out. Zero means every pending story at once.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
}

// CacheConfig controls the suggestion cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LLMConfig selects a local suggestion generator instead of the remote endpoint
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai anthropic ollama"`
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
}

// JiraConfig holds default tracker coordinates; tokens belong in the environment
type JiraConfig struct {
	Domain   string `yaml:"domain" mapstructure:"domain"`
	Email    string `yaml:"email" mapstructure:"email"`
	Token    string `yaml:"token,omitempty" mapstructure:"token"`
	Project  string `yaml:"project" mapstructure:"project"`
	Board    string `yaml:"board" mapstructure:"board"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size" validate:"gte=0,lte=100"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Format  string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:      "http://localhost:5000",
			Timeout:      30 * time.Second,
			UserAgent:    "storyqa/0.3 (+https://github.com/ppiankov/storyqa)",
			MaxBodyBytes: 1 << 20,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         10,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 0,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:  "",
			Model:     "",
			Timeout:   60 * time.Second,
			MaxTokens: 700,
		},
		Jira: JiraConfig{
			Project:  "SCRUM",
			PageSize: 100,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Validate checks field ranges and formats
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
