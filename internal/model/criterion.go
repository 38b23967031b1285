package model

import (
	"fmt"
	"sort"
	"strings"
)

// Criterion names a quality dimension evaluated for a story
type Criterion string

const (
	CriterionAmbiguity  Criterion = "ambiguity"   // Is the story free of vague wording?
	CriterionWellFormed Criterion = "well-formed" // Does the story follow the role/goal/reason shape?
)

// AllCriteria returns every known criterion in display order
func AllCriteria() []Criterion {
	return []Criterion{CriterionAmbiguity, CriterionWellFormed}
}

// ParseCriterion accepts the canonical name and the aliases used by the web form
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ambiguity", "unambiguous":
		return CriterionAmbiguity, nil
	case "well-formed", "wellformed", "well_formed":
		return CriterionWellFormed, nil
	default:
		return "", &ValidationError{Field: "criteria", Message: fmt.Sprintf("unknown criterion %q", s)}
	}
}

// Verdict is the binary outcome of one criterion against one story.
// The wire value is always 0 or 1; its meaning depends on the criterion,
// so callers should compare against the named values below.
type Verdict int

// Ambiguity verdicts: 1 means the story reads clearly.
const (
	Ambiguous Verdict = 0
	Clear     Verdict = 1
)

// Well-formedness verdicts: 1 means the story is well formed.
const (
	PoorlyFormed Verdict = 0
	WellFormed   Verdict = 1
)

// Valid reports whether v is a legal wire value
func (v Verdict) Valid() bool {
	return v == 0 || v == 1
}

// Favorable reports whether v is the desirable outcome for criterion c
func (c Criterion) Favorable(v Verdict) bool {
	switch c {
	case CriterionAmbiguity:
		return v == Clear
	case CriterionWellFormed:
		return v == WellFormed
	default:
		return false
	}
}

// Label returns the human-readable meaning of v for criterion c
func (c Criterion) Label(v Verdict) string {
	switch c {
	case CriterionAmbiguity:
		if v == Clear {
			return "Clear"
		}
		return "Ambiguous"
	case CriterionWellFormed:
		if v == WellFormed {
			return "Well-formed"
		}
		return "Poorly formed"
	default:
		return fmt.Sprintf("%s=%d", c, v)
	}
}

// VerdictMap holds the verdicts of one evaluation run. A criterion is present
// only if it was selected when the evaluation ran.
type VerdictMap map[Criterion]Verdict

// Clone returns an independent copy (nil stays nil)
func (m VerdictMap) Clone() VerdictMap {
	if m == nil {
		return nil
	}
	out := make(VerdictMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal compares two verdict maps key by key
func (m VerdictMap) Equal(other VerdictMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Get returns the verdict for c and whether it is present
func (m VerdictMap) Get(c Criterion) (Verdict, bool) {
	v, ok := m[c]
	return v, ok
}

// OrDefault returns the verdict for c, treating an absent verdict as 0
func (m VerdictMap) OrDefault(c Criterion) Verdict {
	if v, ok := m[c]; ok {
		return v
	}
	return 0
}

// String renders the map in a stable order, e.g. "ambiguity=0 well-formed=1"
func (m VerdictMap) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[Criterion(k)]))
	}
	return strings.Join(parts, " ")
}

// CriteriaSelection records which criteria the user asked for
type CriteriaSelection map[Criterion]bool

// SelectAll returns a selection with every known criterion enabled
func SelectAll() CriteriaSelection {
	sel := make(CriteriaSelection)
	for _, c := range AllCriteria() {
		sel[c] = true
	}
	return sel
}

// ParseSelection builds a selection from names like "ambiguity,well-formed"
func ParseSelection(names []string) (CriteriaSelection, error) {
	sel := make(CriteriaSelection)
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			c, err := ParseCriterion(name)
			if err != nil {
				return nil, err
			}
			sel[c] = true
		}
	}
	return sel, nil
}

// Selected returns the enabled criteria in display order
func (s CriteriaSelection) Selected() []Criterion {
	var out []Criterion
	for _, c := range AllCriteria() {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether no criterion is enabled
func (s CriteriaSelection) Empty() bool {
	return len(s.Selected()) == 0
}

// NeedsImprovement is false only when every selected criterion has a
// favourable verdict. Unevaluated stories always need improvement.
func NeedsImprovement(verdicts VerdictMap, sel CriteriaSelection) bool {
	if verdicts == nil {
		return true
	}
	for _, c := range sel.Selected() {
		v, ok := verdicts[c]
		if !ok || !c.Favorable(v) {
			return true
		}
	}
	return false
}
