// Package llm generates story improvement suggestions with a local or
// hosted language model instead of the remote suggestion endpoint.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate completes a prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest is one completion call
type GenerateRequest struct {
	Prompt    string
	System    string
	Model     string // Overrides the configured model when set
	MaxTokens int
}

// GenerateResponse is the completion output
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI-compatible and Anthropic endpoints
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	Timeout time.Duration

	// MaxTokens caps generation regardless of the per-request budget
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   60 * time.Second,
		MaxTokens: maxTokenCeiling,
	}
}
