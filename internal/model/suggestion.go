package model

// Line is one renderable line of a section body
type Line struct {
	Text   string `json:"text"`
	Bullet bool   `json:"bullet,omitempty"` // Source line started with "*"
}

// Section is a labeled block of a suggestion
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`  // Trimmed text after the first colon
	Lines   []Line `json:"lines"` // Non-blank body lines in source order
}

// BulletPoints returns the bullet lines only
func (s Section) BulletPoints() []string {
	var out []string
	for _, l := range s.Lines {
		if l.Bullet {
			out = append(out, l.Text)
		}
	}
	return out
}

// StructuredSuggestion is the parsed outline of one raw suggestion string
type StructuredSuggestion struct {
	Sections []Section `json:"sections"`
}

// Clone returns a deep copy
func (s StructuredSuggestion) Clone() StructuredSuggestion {
	out := StructuredSuggestion{Sections: make([]Section, len(s.Sections))}
	for i, sec := range s.Sections {
		sec.Lines = append([]Line(nil), sec.Lines...)
		out.Sections[i] = sec
	}
	return out
}

// SuggestionRequest is the payload for a suggestion capability. Verdicts are
// already coerced: an absent criterion is sent as 0.
type SuggestionRequest struct {
	UserStory  string  `json:"user_story"`
	WellFormed Verdict `json:"well_formed_prediction"`
	Ambiguity  Verdict `json:"ambiguity_prediction"`
}

// NewSuggestionRequest builds a request from a possibly partial verdict map
func NewSuggestionRequest(text string, verdicts VerdictMap) SuggestionRequest {
	return SuggestionRequest{
		UserStory:  text,
		WellFormed: verdicts.OrDefault(CriterionWellFormed),
		Ambiguity:  verdicts.OrDefault(CriterionAmbiguity),
	}
}
