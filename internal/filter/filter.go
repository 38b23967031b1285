// Package filter derives the visible subset of a working set without
// touching the records themselves.
package filter

import (
	"fmt"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// Value is one choice of a verdict filter
type Value string

const (
	All           Value = "all"
	Clear         Value = "clear"
	Ambiguous     Value = "ambiguous"
	WellFormed    Value = "well-formed"
	NotWellFormed Value = "not well-formed"
)

// Filters is the conjunction applied to every record
type Filters struct {
	Ambiguity  Value
	WellFormed Value
	Search     string
}

// None matches every record
func None() Filters {
	return Filters{Ambiguity: All, WellFormed: All}
}

// ParseAmbiguity accepts all, clear or ambiguous; empty means all
func ParseAmbiguity(s string) (Value, error) {
	switch Value(strings.ToLower(strings.TrimSpace(s))) {
	case "", All:
		return All, nil
	case Clear:
		return Clear, nil
	case Ambiguous:
		return Ambiguous, nil
	default:
		return "", &model.ValidationError{Field: "ambiguity", Message: fmt.Sprintf("unknown filter %q (want all, clear or ambiguous)", s)}
	}
}

// ParseWellFormed accepts all, well-formed or not well-formed (also
// not-well-formed); empty means all
func ParseWellFormed(s string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(All):
		return All, nil
	case string(WellFormed):
		return WellFormed, nil
	case string(NotWellFormed), "not-well-formed":
		return NotWellFormed, nil
	default:
		return "", &model.ValidationError{Field: "well-formed", Message: fmt.Sprintf("unknown filter %q (want all, well-formed or not-well-formed)", s)}
	}
}

// Apply returns the records matching f, in input order. The input slice
// and its records are not modified.
func Apply(records []model.StoryRecord, f Filters) []model.StoryRecord {
	out := make([]model.StoryRecord, 0, len(records))
	for _, r := range records {
		if Match(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether a single record passes f. A non-"all" verdict
// filter excludes records without that verdict.
func Match(r model.StoryRecord, f Filters) bool {
	if !matchVerdict(r.Verdicts, model.CriterionAmbiguity, ambiguityTarget(f.Ambiguity)) {
		return false
	}
	if !matchVerdict(r.Verdicts, model.CriterionWellFormed, wellFormedTarget(f.WellFormed)) {
		return false
	}
	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Text), strings.ToLower(f.Search))
}

func ambiguityTarget(v Value) *model.Verdict {
	switch v {
	case Clear:
		return verdictPtr(model.Clear)
	case Ambiguous:
		return verdictPtr(model.Ambiguous)
	default:
		return nil
	}
}

func wellFormedTarget(v Value) *model.Verdict {
	switch v {
	case WellFormed:
		return verdictPtr(model.WellFormed)
	case NotWellFormed:
		return verdictPtr(model.PoorlyFormed)
	default:
		return nil
	}
}

func verdictPtr(v model.Verdict) *model.Verdict {
	return &v
}

func matchVerdict(m model.VerdictMap, c model.Criterion, want *model.Verdict) bool {
	if want == nil {
		return true
	}
	got, ok := m.Get(c)
	return ok && got == *want
}
