package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/suggest"
)

var (
	// ErrUnknownStory means the identity is not (or no longer) in the working set
	ErrUnknownStory = errors.New("unknown story")
	// ErrDuplicateStory means two records share an identity
	ErrDuplicateStory = errors.New("duplicate story identity")
	// ErrSuperseded means the record changed while a call for it was in flight
	ErrSuperseded = errors.New("story changed during evaluation")
)

// WorkingSet is the single owner of a batch of story records. All mutation
// goes through its methods; readers get copies.
type WorkingSet struct {
	orchestrator *Orchestrator
	suggestions  *suggest.Orchestrator
	logger       *slog.Logger

	mu      sync.Mutex
	order   []string
	records map[string]*model.StoryRecord
	errs    map[string]error
	gen     map[string]uint64
	retired map[string]bool
	emptied bool
	onEmpty func()
}

// WorkingSetOption configures a WorkingSet
type WorkingSetOption func(*WorkingSet)

// WithSuggestions enables FetchSuggestions and resets suggestion cycles on edits
func WithSuggestions(o *suggest.Orchestrator) WorkingSetOption {
	return func(ws *WorkingSet) { ws.suggestions = o }
}

// WithOnEmpty registers a callback run once, when the last record is dismissed
func WithOnEmpty(fn func()) WorkingSetOption {
	return func(ws *WorkingSet) { ws.onEmpty = fn }
}

// WithWorkingSetLogger sets the logger
func WithWorkingSetLogger(l *slog.Logger) WorkingSetOption {
	return func(ws *WorkingSet) {
		if l != nil {
			ws.logger = l
		}
	}
}

// NewWorkingSet takes ownership of copies of records, in order
func NewWorkingSet(orchestrator *Orchestrator, records []model.StoryRecord, opts ...WorkingSetOption) (*WorkingSet, error) {
	ws := &WorkingSet{
		orchestrator: orchestrator,
		logger:       slog.New(slog.DiscardHandler),
		records:      make(map[string]*model.StoryRecord, len(records)),
		errs:         make(map[string]error),
		gen:          make(map[string]uint64, len(records)),
		retired:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(ws)
	}

	for _, r := range records {
		if r.ID == "" {
			return nil, &model.ValidationError{Field: "id", Message: "story has no identity"}
		}
		if _, dup := ws.records[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStory, r.ID)
		}
		rec := r.Clone()
		ws.records[r.ID] = &rec
		ws.order = append(ws.order, r.ID)
	}
	return ws, nil
}

// Len returns the number of live records
func (ws *WorkingSet) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.order)
}

// Empty reports whether dismissals emptied the set
func (ws *WorkingSet) Empty() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.order) == 0
}

// Records returns copies of the live records in order
func (ws *WorkingSet) Records() []model.StoryRecord {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	out := make([]model.StoryRecord, 0, len(ws.order))
	for _, id := range ws.order {
		out = append(out, ws.records[id].Clone())
	}
	return out
}

// Get returns a copy of one record
func (ws *WorkingSet) Get(id string) (model.StoryRecord, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	rec, ok := ws.records[id]
	if !ok {
		return model.StoryRecord{}, false
	}
	return rec.Clone(), true
}

// Lookup resolves a record by identity or human key
func (ws *WorkingSet) Lookup(ref string) (string, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.records[ref]; ok {
		return ref, true
	}
	for _, id := range ws.order {
		if strings.EqualFold(ws.records[id].Key, ref) {
			return id, true
		}
	}
	return "", false
}

// Err returns the last evaluation error recorded for a story
func (ws *WorkingSet) Err(id string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.errs[id]
}

// Evaluate runs a batch over the live records and attaches the verdicts.
// Results for records dismissed or edited meanwhile are dropped.
func (ws *WorkingSet) Evaluate(ctx context.Context, sel model.CriteriaSelection) []Outcome {
	ws.mu.Lock()
	snapshot := make([]model.StoryRecord, 0, len(ws.order))
	gens := make(map[string]uint64, len(ws.order))
	for _, id := range ws.order {
		snapshot = append(snapshot, ws.records[id].Clone())
		gens[id] = ws.gen[id]
	}
	ws.mu.Unlock()

	outcomes := ws.orchestrator.EvaluateBatch(ctx, snapshot, sel)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, o := range outcomes {
		rec, ok := ws.records[o.ID]
		if !ok || ws.gen[o.ID] != gens[o.ID] || o.Skipped {
			continue
		}
		if o.Err != nil {
			ws.errs[o.ID] = o.Err
			continue
		}
		delete(ws.errs, o.ID)
		rec.Verdicts = o.Verdicts.Clone()
		rec.Suggestions = nil
		rec.SuggestionsFetched = false
	}
	return outcomes
}

// Dismiss removes a record for good. It reports true exactly once: on the
// dismissal that leaves the set empty.
func (ws *WorkingSet) Dismiss(id string) (bool, error) {
	ws.mu.Lock()
	if _, ok := ws.records[id]; !ok {
		ws.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownStory, id)
	}

	delete(ws.records, id)
	delete(ws.errs, id)
	ws.gen[id]++
	ws.retired[id] = true
	for i, oid := range ws.order {
		if oid == id {
			ws.order = append(ws.order[:i], ws.order[i+1:]...)
			break
		}
	}

	emptied := false
	if len(ws.order) == 0 && !ws.emptied {
		ws.emptied = true
		emptied = true
	}
	onEmpty := ws.onEmpty
	ws.mu.Unlock()

	if ws.suggestions != nil {
		ws.suggestions.Reset(id)
	}
	ws.logger.Debug("story dismissed", "id", id, "remaining", ws.Len())
	if emptied && onEmpty != nil {
		onEmpty()
	}
	return emptied, nil
}

// Retired reports whether id was dismissed from this set
func (ws *WorkingSet) Retired(id string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.retired[id]
}

// ApplyImprovement re-evaluates newText against every criterion and, on
// success, replaces the record's text and verdicts together and starts a
// new suggestion cycle. On failure the record is left exactly as it was.
func (ws *WorkingSet) ApplyImprovement(ctx context.Context, id, newText string) (model.VerdictMap, error) {
	if strings.TrimSpace(newText) == "" {
		return nil, &model.ValidationError{Field: "user_story", Message: "improved text is empty"}
	}

	ws.mu.Lock()
	if _, ok := ws.records[id]; !ok {
		ws.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownStory, id)
	}
	gen := ws.gen[id]
	ws.mu.Unlock()

	verdicts, err := ws.orchestrator.Evaluator().EvaluateOne(ctx, newText, model.SelectAll())
	if err != nil {
		ws.logger.Warn("improvement evaluation failed", "id", id, "error", err)
		return nil, err
	}

	ws.mu.Lock()
	rec, ok := ws.records[id]
	switch {
	case !ok:
		ws.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownStory, id)
	case ws.gen[id] != gen:
		ws.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	rec.Text = newText
	rec.Verdicts = verdicts.Clone()
	rec.Suggestions = nil
	rec.SuggestionsFetched = false
	ws.gen[id]++
	delete(ws.errs, id)
	ws.mu.Unlock()

	if ws.suggestions != nil {
		ws.suggestions.Reset(id)
	}
	return verdicts, nil
}

// SuggestionStatus reports where a story's suggestion cycle stands. Without
// a configured orchestrator every story is idle.
func (ws *WorkingSet) SuggestionStatus(id string) suggest.Status {
	if ws.suggestions == nil {
		return suggest.Status{State: suggest.StateIdle}
	}
	return ws.suggestions.Status(id)
}

// FetchSuggestions gets, parses and attaches suggestions for a record.
// Re-asking with unchanged text and verdicts returns the attached result.
func (ws *WorkingSet) FetchSuggestions(ctx context.Context, id string) ([]model.StructuredSuggestion, error) {
	if ws.suggestions == nil {
		return nil, errors.New("suggestions are not configured")
	}

	ws.mu.Lock()
	rec, ok := ws.records[id]
	if !ok {
		ws.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownStory, id)
	}
	if rec.SuggestionsFetched {
		out := rec.Clone().Suggestions
		ws.mu.Unlock()
		return out, nil
	}
	text, verdicts, gen := rec.Text, rec.Verdicts.Clone(), ws.gen[id]
	ws.mu.Unlock()

	raw, err := ws.suggestions.GetSuggestions(ctx, id, text, verdicts)
	if err != nil {
		return nil, err
	}
	parsed := suggest.ParseAll(raw)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	rec, ok = ws.records[id]
	if !ok || ws.gen[id] != gen || !rec.Verdicts.Equal(verdicts) {
		return nil, suggest.ErrStaleResponse
	}
	if !rec.SuggestionsFetched {
		rec.Suggestions = parsed
		rec.SuggestionsFetched = true
	}
	return rec.Clone().Suggestions, nil
}
