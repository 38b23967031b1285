package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

const (
	baseTokens          = 200
	perCriterionTokens  = 50
	suggestionsPerCheck = 5
	tokensPerSuggestion = 100
	maxTokenCeiling     = 700
)

const systemPrompt = "You are an Agile coach reviewing user stories against the AQUSA quality framework."

const wellFormedPrompt = `You are an Agile expert familiar with the AQUSA framework, in particular its Well-Formed criteria for user stories.
Review the user story below and suggest improvements.

User Story: '%s'

Focus on:

1. Enhancing clarity (max 100 words).
2. Increasing completeness (max 100 words).

Keep each section within its word limit and put each suggestion on a new line in exactly this format:

Enhancing clarity: [explanation, max 100 words]

Increasing completeness: [explanation, max 100 words]

Do not rewrite the user story; only give suggestions.`

const ambiguityPrompt = `You are an Agile expert familiar with the AQUSA framework, in particular its criteria for removing ambiguity from user stories.
Review the user story below and give five suggestions that reduce ambiguity.

User Story: '%s'

Focus on:

1. Identifying vague terms or phrases that could cause misunderstandings (max 100 words).
2. Recommending specific language to replace ambiguous terms (max 100 words).
3. Ensuring the user story is actionable and specific enough for clear development tasks (max 100 words).
4. Clarifying the intent and scope of the user story so stakeholders agree on it (max 100 words).
5. Providing concrete examples or contexts that show the desired outcome (max 100 words).

Keep each section within its word limit and put each suggestion on a new line in exactly this format:

Identifying vague terms or phrases: [explanation, max 100 words]

Recommending specific language to replace ambiguous terms: [explanation, max 100 words]

Ensuring the user story is actionable and specific: [explanation, max 100 words]

Clarifying the intent and scope of the user story: [explanation, max 100 words]

Providing concrete examples or contexts: [explanation, max 100 words]

Do not rewrite the user story; only give suggestions.`

// BuildPrompt assembles one prompt section per unfavourable verdict and
// returns how many criteria were violated. No violation means an empty prompt.
func BuildPrompt(req model.SuggestionRequest) (string, int) {
	var parts []string
	if req.WellFormed == model.PoorlyFormed {
		parts = append(parts, fmt.Sprintf(wellFormedPrompt, req.UserStory))
	}
	if req.Ambiguity == model.Ambiguous {
		parts = append(parts, fmt.Sprintf(ambiguityPrompt, req.UserStory))
	}
	return strings.Join(parts, "\n"), len(parts)
}

// MaxTokens is the generation budget for n violated criteria
func MaxTokens(violated int) int {
	if violated <= 0 {
		return 0
	}
	budget := baseTokens + violated*perCriterionTokens + violated*suggestionsPerCheck*tokensPerSuggestion
	return min(budget, maxTokenCeiling)
}
