package jira

import (
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// Search keeps stories whose summary or description contains term,
// ignoring case. An empty term keeps everything.
func Search(stories []Story, term string) []Story {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Story, 0, len(stories))
	for _, s := range stories {
		if term == "" ||
			strings.Contains(strings.ToLower(s.Summary), term) ||
			strings.Contains(strings.ToLower(s.Description), term) {
			out = append(out, s)
		}
	}
	return out
}

// ToRecords turns imported stories into working-set records keyed by issue key
func ToRecords(stories []Story) []model.StoryRecord {
	out := make([]model.StoryRecord, 0, len(stories))
	for _, s := range stories {
		out = append(out, model.StoryRecord{
			ID:          s.Key,
			Key:         s.Key,
			Text:        s.Summary,
			Description: s.Description,
			Status:      s.Status,
		})
	}
	return out
}
