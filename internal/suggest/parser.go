// Package suggest turns raw improvement suggestions into structured outlines
// and guards suggestion fetches so each story is asked about once per revision.
package suggest

import (
	"sort"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// Markers is the closed vocabulary of section headings the suggestion
// service is prompted to emit. Matching is case-sensitive and requires
// the trailing colon.
var Markers = []string{
	"Enhancing clarity",
	"Increasing completeness",
	"Identifying vague terms or phrases",
	"Recommending specific language to replace ambiguous terms",
	"Clarifying the intent and scope of the user story",
	"Providing concrete examples or contexts",
	"Ensuring the user story is actionable and specific",
}

// Parse splits raw before every recognized marker and labels each segment.
// It never fails: text without markers becomes a single section headed by
// whatever precedes its first colon.
func Parse(raw string) model.StructuredSuggestion {
	segments := splitAtMarkers(raw)

	sections := make([]model.Section, 0, len(segments))
	for _, seg := range segments {
		sections = append(sections, parseSection(seg))
	}
	return model.StructuredSuggestion{Sections: sections}
}

// ParseAll parses each raw suggestion in order
func ParseAll(raws []string) []model.StructuredSuggestion {
	out := make([]model.StructuredSuggestion, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Parse(raw))
	}
	return out
}

// splitAtMarkers cuts raw at each marker start. A cut at offset 0 does not
// produce an empty leading segment, and a whitespace-only preamble is
// dropped when real sections follow it.
func splitAtMarkers(raw string) []string {
	cuts := markerOffsets(raw)
	if len(cuts) == 0 {
		return []string{raw}
	}

	var segments []string
	start := 0
	for _, cut := range cuts {
		if cut == start {
			continue
		}
		segments = append(segments, raw[start:cut])
		start = cut
	}
	segments = append(segments, raw[start:])

	if len(segments) > 1 && strings.TrimSpace(segments[0]) == "" {
		segments = segments[1:]
	}
	return segments
}

// markerOffsets returns the sorted, de-duplicated byte offsets where a
// marker followed by ":" begins
func markerOffsets(raw string) []int {
	seen := make(map[int]bool)
	var offsets []int
	for _, m := range Markers {
		needle := m + ":"
		from := 0
		for {
			idx := strings.Index(raw[from:], needle)
			if idx < 0 {
				break
			}
			pos := from + idx
			if !seen[pos] {
				seen[pos] = true
				offsets = append(offsets, pos)
			}
			from = pos + len(needle)
		}
	}
	sort.Ints(offsets)
	return offsets
}

func parseSection(seg string) model.Section {
	colon := strings.Index(seg, ":")
	if colon < 0 {
		return model.Section{Heading: strings.TrimSpace(seg)}
	}

	body := strings.TrimSpace(seg[colon+1:])
	return model.Section{
		Heading: strings.TrimSpace(seg[:colon]),
		Body:    body,
		Lines:   bodyLines(body),
	}
}

func bodyLines(body string) []model.Line {
	var lines []model.Line
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "*") {
			lines = append(lines, model.Line{Text: strings.TrimSpace(line[1:]), Bullet: true})
			continue
		}
		lines = append(lines, model.Line{Text: line})
	}
	return lines
}
