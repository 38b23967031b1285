package render

import (
	"fmt"
	"io"

	"github.com/ppiankov/storyqa/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// Printer writes human-readable output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer that writes to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Banner prints a ruled title block
//
//nolint:errcheck // terminal output
func (p *Printer) Banner(title string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "  %s\n", title)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintln(p.out)
}

// Story prints one story with its verdicts and tips
//
//nolint:errcheck // terminal output
func (p *Printer) Story(v StoryView) {
	fmt.Fprintf(p.out, "[%s] %s\n", v.Label(), v.Text)
	if v.Status != "" {
		fmt.Fprintf(p.out, "    Status:    %s\n", v.Status)
	}

	switch {
	case v.Error != "":
		fmt.Fprintf(p.out, "    ✗ %s\n", v.Error)
	case !v.Evaluated():
		fmt.Fprintln(p.out, "    (not evaluated)")
	default:
		for _, c := range model.AllCriteria() {
			verdict, ok := v.Verdicts.Get(c)
			if !ok {
				continue
			}
			mark := "✓"
			if !c.Favorable(verdict) {
				mark = "✗"
			}
			fmt.Fprintf(p.out, "    %s %-12s %s\n", mark, string(c)+":", c.Label(verdict))
		}
		for _, tip := range v.Tips {
			fmt.Fprintf(p.out, "    • %s\n", tip)
		}
	}

	for _, s := range v.Suggestions {
		p.Suggestion(s, "    ")
	}
	if v.SuggestionError != "" {
		fmt.Fprintf(p.out, "    ✗ suggestions: %s\n", v.SuggestionError)
	}
	fmt.Fprintln(p.out)
}

// Report prints every story followed by the summary
func (p *Printer) Report(r *Report) {
	for _, v := range r.Stories {
		p.Story(v)
	}
	p.Summary(r.Summary)
}

// Summary prints outcome counts
//
//nolint:errcheck // terminal output
func (p *Printer) Summary(s Summary) {
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "  Total:          %d\n", s.Total)
	fmt.Fprintf(p.out, "  Evaluated:      %d\n", s.Evaluated)
	fmt.Fprintf(p.out, "  Failed:         %d\n", s.Failed)
	fmt.Fprintf(p.out, "  Ambiguous:      %d\n", s.Ambiguous)
	fmt.Fprintf(p.out, "  Poorly formed:  %d\n", s.PoorlyFormed)
	if s.SuggestionsFailed > 0 {
		fmt.Fprintf(p.out, "  No suggestions: %d (fetch failed)\n", s.SuggestionsFailed)
	}
	fmt.Fprintln(p.out, rule)
}

// Suggestion prints a parsed outline with lines and bullets indented
// under their heading
//
//nolint:errcheck // terminal output
func (p *Printer) Suggestion(s model.StructuredSuggestion, indent string) {
	for _, sec := range s.Sections {
		if sec.Heading != "" {
			fmt.Fprintf(p.out, "%s%s\n", indent, sec.Heading)
		}
		for _, line := range sec.Lines {
			if line.Bullet {
				fmt.Fprintf(p.out, "%s  • %s\n", indent, line.Text)
				continue
			}
			fmt.Fprintf(p.out, "%s  %s\n", indent, line.Text)
		}
	}
}

// Suggestions prints every outline, or a note when there are none
//
//nolint:errcheck // terminal output
func (p *Printer) Suggestions(all []model.StructuredSuggestion) {
	if len(all) == 0 {
		fmt.Fprintln(p.out, "No suggestions.")
		return
	}
	for i, s := range all {
		if i > 0 {
			fmt.Fprintln(p.out)
		}
		p.Suggestion(s, "")
	}
}
