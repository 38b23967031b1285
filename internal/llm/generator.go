package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// Generator produces raw suggestions from a Provider. It has the same
// contract as the remote suggestion endpoint.
type Generator struct {
	provider  Provider
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator wraps provider. maxTokens caps the per-request budget when positive.
func NewGenerator(provider Provider, maxTokens int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{provider: provider, maxTokens: maxTokens, logger: logger}
}

// Suggest returns an empty list when no verdict is unfavourable and
// otherwise a single generated suggestion
func (g *Generator) Suggest(ctx context.Context, req model.SuggestionRequest) ([]string, error) {
	if strings.TrimSpace(req.UserStory) == "" {
		return nil, &model.ValidationError{Field: "user_story", Message: "story text is empty"}
	}

	prompt, violated := BuildPrompt(req)
	if violated == 0 {
		return []string{}, nil
	}

	budget := MaxTokens(violated)
	if g.maxTokens > 0 && g.maxTokens < budget {
		budget = g.maxTokens
	}

	g.logger.Debug("generating suggestions", "provider", g.provider.Name(), "violated", violated, "max_tokens", budget)
	resp, err := g.provider.Generate(ctx, GenerateRequest{
		Prompt:    prompt,
		System:    systemPrompt,
		MaxTokens: budget,
	})
	if err != nil {
		return nil, &model.RemoteUnavailableError{Endpoint: "llm/" + g.provider.Name(), Cause: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return []string{}, nil
	}
	return []string{text}, nil
}
