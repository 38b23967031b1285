package model

// StoryRecord is one user story in a working set
type StoryRecord struct {
	ID          string `json:"id"`                    // Stable identity, never reused within a session
	Key         string `json:"key,omitempty"`         // Human-facing key (Jira issue key or input position)
	Text        string `json:"text"`                  // Story text, mutable through improvements
	Description string `json:"description,omitempty"` // Optional longer description from the tracker
	Status      string `json:"status,omitempty"`      // Tracker workflow status

	Verdicts VerdictMap `json:"verdicts,omitempty"` // nil until evaluated

	Suggestions        []StructuredSuggestion `json:"suggestions,omitempty"`
	SuggestionsFetched bool                   `json:"suggestions_fetched"`
}

// Evaluated reports whether the record carries a verdict map
func (r StoryRecord) Evaluated() bool {
	return r.Verdicts != nil
}

// Clone returns a deep copy so callers can't alias working-set state
func (r StoryRecord) Clone() StoryRecord {
	out := r
	out.Verdicts = r.Verdicts.Clone()
	if r.Suggestions != nil {
		out.Suggestions = make([]StructuredSuggestion, len(r.Suggestions))
		for i, s := range r.Suggestions {
			out.Suggestions[i] = s.Clone()
		}
	}
	return out
}

// Label returns Key when set, otherwise ID
func (r StoryRecord) Label() string {
	if r.Key != "" {
		return r.Key
	}
	return r.ID
}
