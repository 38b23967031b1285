package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// NewProvider creates a provider from configuration. An empty provider
// name means local generation is disabled and returns nil, nil.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(llmConfig model.LLMConfig, service model.ServiceConfig) Config {
	return Config{
		Provider:   llmConfig.Provider,
		Model:      llmConfig.Model,
		APIKey:     llmConfig.APIKey,
		BaseURL:    llmConfig.BaseURL,
		Timeout:    llmConfig.Timeout,
		MaxTokens:  llmConfig.MaxTokens,
		HTTPProxy:  service.HTTPProxy,
		HTTPSProxy: service.HTTPSProxy,
	}
}
