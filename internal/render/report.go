// Package render prints working sets and suggestion outlines for the CLI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/storyqa/internal/model"
	"github.com/ppiankov/storyqa/internal/suggest"
)

// StoryView is one record as it appears in a report
type StoryView struct {
	model.StoryRecord
	Labels           map[model.Criterion]string `json:"labels,omitempty"`
	Tips             []string                   `json:"tips,omitempty"`
	NeedsImprovement bool                       `json:"needs_improvement"`
	Error            string                     `json:"error,omitempty"`
	SuggestionState  string                     `json:"suggestion_state,omitempty"`
	SuggestionError  string                     `json:"suggestion_error,omitempty"`
}

// SetSuggestionStatus records the story's suggestion cycle. An idle cycle
// leaves both fields empty, so "never asked" and "failed" stay distinct.
func (v *StoryView) SetSuggestionStatus(st suggest.Status) {
	if st.State == suggest.StateIdle {
		v.SuggestionState, v.SuggestionError = "", ""
		return
	}
	v.SuggestionState = st.State.String()
	v.SuggestionError = ""
	if st.State == suggest.StateFailed && st.Err != nil {
		v.SuggestionError = st.Err.Error()
	}
}

// Summary counts outcomes across a report
type Summary struct {
	Total        int `json:"total"`
	Evaluated    int `json:"evaluated"`
	Failed       int `json:"failed"`
	Ambiguous    int `json:"ambiguous"`
	PoorlyFormed int `json:"poorly_formed"`

	SuggestionsFailed int `json:"suggestions_failed,omitempty"`
}

// Report is the JSON document written by evaluate and batch
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Criteria    []model.Criterion `json:"criteria"`
	Stories     []StoryView       `json:"stories"`
	Summary     Summary           `json:"summary"`
}

// ReportOption customizes NewReport
type ReportOption func(*reportConfig)

type reportConfig struct {
	statusOf func(id string) suggest.Status
}

// WithSuggestionStatus attaches each story's suggestion state to the report
func WithSuggestionStatus(statusOf func(id string) suggest.Status) ReportOption {
	return func(c *reportConfig) { c.statusOf = statusOf }
}

// NewReport builds a report; errOf may be nil
func NewReport(records []model.StoryRecord, sel model.CriteriaSelection, errOf func(id string) error, opts ...ReportOption) *Report {
	var cfg reportConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Criteria:    sel.Selected(),
		Stories:     make([]StoryView, 0, len(records)),
	}
	for _, rec := range records {
		var err error
		if errOf != nil {
			err = errOf(rec.ID)
		}
		view := NewStoryView(rec, sel, err)
		if cfg.statusOf != nil {
			view.SetSuggestionStatus(cfg.statusOf(rec.ID))
		}
		r.Stories = append(r.Stories, view)
		r.Summary.add(view)
	}
	return r
}

// NewStoryView decorates a record with labels and tips
func NewStoryView(rec model.StoryRecord, sel model.CriteriaSelection, err error) StoryView {
	view := StoryView{StoryRecord: rec.Clone()}
	if err != nil {
		view.Error = err.Error()
	}
	if !rec.Evaluated() {
		return view
	}

	view.Labels = make(map[model.Criterion]string, len(rec.Verdicts))
	for c, v := range rec.Verdicts {
		view.Labels[c] = c.Label(v)
	}
	view.Tips = suggest.Tips(rec.Verdicts)
	view.NeedsImprovement = model.NeedsImprovement(rec.Verdicts, sel)
	return view
}

func (s *Summary) add(v StoryView) {
	s.Total++
	if v.Error != "" {
		s.Failed++
	}
	if v.SuggestionError != "" {
		s.SuggestionsFailed++
	}
	if !v.Evaluated() {
		return
	}
	s.Evaluated++
	if verdict, ok := v.Verdicts.Get(model.CriterionAmbiguity); ok && verdict == model.Ambiguous {
		s.Ambiguous++
	}
	if verdict, ok := v.Verdicts.Get(model.CriterionWellFormed); ok && verdict == model.PoorlyFormed {
		s.PoorlyFormed++
	}
}

// WriteJSON encodes v with indentation
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteJSONFile writes v to path
func WriteJSONFile(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return WriteJSON(f, v)
}
