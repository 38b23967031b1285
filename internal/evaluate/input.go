package evaluate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/storyqa/internal/model"
)

type storyEntry struct {
	Key         string `yaml:"key"`
	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

// LoadStories reads a batch file. YAML files (.yaml, .yml) hold a list of
// {key, summary, description, status}; anything else is one story per
// line with "#" comments. Blank and duplicate stories are dropped.
func LoadStories(path string) ([]model.StoryRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stories: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLStories(raw)
	default:
		return parseTextStories(raw)
	}
}

func parseTextStories(raw []byte) ([]model.StoryRecord, error) {
	var out []model.StoryRecord
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, model.StoryRecord{
			ID:   uuid.NewString(),
			Key:  strconv.Itoa(len(out) + 1),
			Text: line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stories: %w", err)
	}
	return out, nil
}

func parseYAMLStories(raw []byte) ([]model.StoryRecord, error) {
	var entries []storyEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse stories: %w", err)
	}

	var out []model.StoryRecord
	seenKeys := make(map[string]bool)
	seenText := make(map[string]bool)
	for i, e := range entries {
		text := strings.TrimSpace(e.Summary)
		if text == "" || seenText[text] {
			continue
		}
		key := strings.TrimSpace(e.Key)
		if key == "" {
			key = strconv.Itoa(i + 1)
		}
		if seenKeys[key] {
			return nil, fmt.Errorf("%w: key %s", ErrDuplicateStory, key)
		}
		seenKeys[key] = true
		seenText[text] = true

		out = append(out, model.StoryRecord{
			ID:          uuid.NewString(),
			Key:         key,
			Text:        text,
			Description: strings.TrimSpace(e.Description),
			Status:      e.Status,
		})
	}
	return out, nil
}
