package evaluate

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/suggest"
)

// Form is the interactive single-story flow: submit text with a criteria
// selection, read the verdicts, then optionally ask for suggestions.
// Every submission is a new record with a fresh identity.
type Form struct {
	evaluator   *Evaluator
	suggestions *suggest.Orchestrator

	mu      sync.Mutex
	current *model.StoryRecord
	sel     model.CriteriaSelection
}

// NewForm creates a form. suggestions may be nil.
func NewForm(evaluator *Evaluator, suggestions *suggest.Orchestrator) *Form {
	return &Form{evaluator: evaluator, suggestions: suggestions}
}

// Submit validates input locally, evaluates the story and makes it current.
// On failure the previous submission stays current.
func (f *Form) Submit(ctx context.Context, text string, sel model.CriteriaSelection) (model.StoryRecord, error) {
	if strings.TrimSpace(text) == "" {
		return model.StoryRecord{}, &model.ValidationError{Field: "user_story", Message: "please enter a user story"}
	}
	if sel.Empty() {
		return model.StoryRecord{}, &model.ValidationError{Field: "criteria", Message: "select at least one criterion"}
	}

	verdicts, err := f.evaluator.EvaluateOne(ctx, text, sel)
	if err != nil {
		return model.StoryRecord{}, err
	}

	rec := model.StoryRecord{
		ID:       uuid.NewString(),
		Text:     text,
		Verdicts: verdicts,
	}

	f.mu.Lock()
	prev := f.current
	f.current = &rec
	f.sel = sel
	f.mu.Unlock()

	if prev != nil && f.suggestions != nil {
		f.suggestions.Reset(prev.ID)
	}
	return rec.Clone(), nil
}

// Current returns the latest successful submission
func (f *Form) Current() (model.StoryRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return model.StoryRecord{}, false
	}
	return f.current.Clone(), true
}

// CanImprove reports whether any selected criterion came back unfavourable
func (f *Form) CanImprove() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return false
	}
	return model.NeedsImprovement(f.current.Verdicts, f.sel)
}

// Suggestions fetches and parses suggestions for the current submission
func (f *Form) Suggestions(ctx context.Context) ([]model.StructuredSuggestion, error) {
	if f.suggestions == nil {
		return nil, &model.ValidationError{Field: "suggestions", Message: "suggestions are not configured"}
	}

	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return nil, &model.ValidationError{Field: "user_story", Message: "submit a story first"}
	}
	rec := f.current.Clone()
	f.mu.Unlock()

	raw, err := f.suggestions.GetSuggestions(ctx, rec.ID, rec.Text, rec.Verdicts)
	if err != nil {
		return nil, err
	}
	parsed := suggest.ParseAll(raw)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.current.ID != rec.ID {
		return nil, suggest.ErrStaleResponse
	}
	f.current.Suggestions = parsed
	f.current.SuggestionsFetched = true
	return f.current.Clone().Suggestions, nil
}
