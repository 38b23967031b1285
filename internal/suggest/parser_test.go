package suggest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/storyqa/internal/model"
)

func TestParse_SingleMarkerWithBullet(t *testing.T) {
	got := Parse("Enhancing clarity: Do X.\n* Also Y.")

	require.Len(t, got.Sections, 1)
	sec := got.Sections[0]
	assert.Equal(t, "Enhancing clarity", sec.Heading)
	assert.Equal(t, "Do X.\n* Also Y.", sec.Body)
	assert.Equal(t, []model.Line{
		{Text: "Do X."},
		{Text: "Also Y.", Bullet: true},
	}, sec.Lines)
	assert.Equal(t, []string{"Also Y."}, sec.BulletPoints())
}

func TestParse_NoMarkers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		heading string
		body    string
	}{
		{"colon fallback", "Consider rewording: name the role first.", "Consider rewording", "name the role first."},
		{"no colon", "  Looks fine overall  ", "Looks fine overall", ""},
		{"empty", "", "", ""},
		{"only colon", ":", "", ""},
		{"lowercase marker is not a marker", "enhancing clarity: nope", "enhancing clarity", "nope"},
		{"marker without colon", "Enhancing clarity is needed", "Enhancing clarity is needed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			require.Len(t, got.Sections, 1)
			assert.Equal(t, tt.heading, got.Sections[0].Heading)
			assert.Equal(t, tt.body, got.Sections[0].Body)
		})
	}
}

func TestParse_MultipleMarkersKeepSourceOrder(t *testing.T) {
	raw := "Here is my review\n" +
		"Increasing completeness: Add acceptance criteria.\n\n" +
		"Enhancing clarity: Name the persona.\n" +
		"Providing concrete examples or contexts: Mention the login page."

	got := Parse(raw)

	require.Len(t, got.Sections, 4)
	headings := make([]string, 0, len(got.Sections))
	for _, s := range got.Sections {
		headings = append(headings, s.Heading)
	}
	assert.Equal(t, []string{
		"Here is my review",
		"Increasing completeness",
		"Enhancing clarity",
		"Providing concrete examples or contexts",
	}, headings)
	assert.Equal(t, "Add acceptance criteria.", got.Sections[1].Body)
	assert.Equal(t, "Mention the login page.", got.Sections[3].Body)
}

func TestParse_SectionCountMatchesMarkers(t *testing.T) {
	var b strings.Builder
	for _, m := range Markers {
		b.WriteString(m)
		b.WriteString(": text for ")
		b.WriteString(m)
		b.WriteString("\n")
	}

	got := Parse(b.String())
	require.Len(t, got.Sections, len(Markers))
	for i, m := range Markers {
		assert.Equal(t, m, got.Sections[i].Heading)
	}

	// Same text with a preamble gains exactly one section
	got = Parse("Suggestions follow.\n" + b.String())
	assert.Len(t, got.Sections, len(Markers)+1)
}

func TestParse_WhitespacePreambleDropped(t *testing.T) {
	got := Parse("\n\n   Enhancing clarity: One.\nIncreasing completeness: Two.")
	require.Len(t, got.Sections, 2)
	assert.Equal(t, "Enhancing clarity", got.Sections[0].Heading)
}

func TestParse_BodyLines(t *testing.T) {
	raw := "Identifying vague terms or phrases: The word \"fast\" is vague.\r\n" +
		"*   Replace it with a latency target.\r\n" +
		"\r\n" +
		"  * indented star stays plain\r\n" +
		"* Second bullet"

	got := Parse(raw)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, []model.Line{
		{Text: "The word \"fast\" is vague."},
		{Text: "Replace it with a latency target.", Bullet: true},
		{Text: "  * indented star stays plain"},
		{Text: "Second bullet", Bullet: true},
	}, got.Sections[0].Lines)
}

func TestParse_Deterministic(t *testing.T) {
	raw := "Clarifying the intent and scope of the user story: scope.\nEnsuring the user story is actionable and specific: act."
	assert.Equal(t, Parse(raw), Parse(raw))
}

func TestParseAll(t *testing.T) {
	got := ParseAll([]string{"Enhancing clarity: a", "plain"})
	require.Len(t, got, 2)
	assert.Equal(t, "Enhancing clarity", got[0].Sections[0].Heading)
	assert.Equal(t, "plain", got[1].Sections[0].Heading)
	assert.Empty(t, ParseAll(nil))
}
