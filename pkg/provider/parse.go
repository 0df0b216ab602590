package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/chapter"
)

// Models wrap their JSON in markdown fences or explanatory prose more often
// than not. Extraction is two-stage: a fenced block wins, then a greedy
// brace match.
var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	braceJSONPattern  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the JSON object out of a raw model response.
func ExtractJSON(response string) (string, error) {
	if match := fencedJSONPattern.FindStringSubmatch(response); match != nil {
		return match[1], nil
	}
	if match := braceJSONPattern.FindString(response); match != "" {
		return match, nil
	}
	return "", fmt.Errorf("could not find JSON object in response")
}

// ParseAnalysis parses a raw model response into a Result according to the
// shared contract {"chapters": [{"timestamp_original", "title"}], "notes":
// [...]}. It enforces structural validity but not the chapter-list ordering
// invariants; callers validate those separately.
func ParseAnalysis(response string) (*Result, error) {
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from response: %w", err)
	}

	chaptersRaw, ok := envelope["chapters"]
	if !ok {
		return nil, fmt.Errorf("missing 'chapters' field in response")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(chaptersRaw, &items); err != nil {
		return nil, fmt.Errorf("expected 'chapters' to be an array: %w", err)
	}

	chapters := make([]chapter.Chapter, 0, len(items))
	for i, item := range items {
		c, err := parseChapterItem(item)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", i, err)
		}
		chapters = append(chapters, c)
	}

	if len(chapters) == 0 {
		return nil, fmt.Errorf("no chapters found in response")
	}

	return &Result{
		Chapters: chapters,
		Notes:    parseNotes(envelope["notes"]),
	}, nil
}

func parseChapterItem(item json.RawMessage) (chapter.Chapter, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return chapter.Chapter{}, fmt.Errorf("not a JSON object")
	}

	timestampRaw, ok := fields["timestamp_original"]
	if !ok {
		return chapter.Chapter{}, fmt.Errorf("missing 'timestamp_original' field")
	}
	titleRaw, ok := fields["title"]
	if !ok {
		return chapter.Chapter{}, fmt.Errorf("missing 'title' field")
	}

	var timestamp float64
	if err := json.Unmarshal(timestampRaw, &timestamp); err != nil {
		return chapter.Chapter{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	var title string
	if err := json.Unmarshal(titleRaw, &title); err != nil {
		return chapter.Chapter{}, fmt.Errorf("invalid title: %w", err)
	}

	c, err := chapter.New(timestamp, title)
	if err != nil {
		return chapter.Chapter{}, fmt.Errorf("invalid chapter data: %w", err)
	}
	return c, nil
}

// parseNotes tolerates the legacy single-string representation as well as
// anything that is not an array of objects, collapsing the latter to empty.
func parseNotes(raw json.RawMessage) []Note {
	if len(raw) == 0 {
		return []Note{}
	}

	var notes []Note
	if err := json.Unmarshal(raw, &notes); err == nil {
		if notes == nil {
			return []Note{}
		}
		return notes
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return []Note{}
		}
		return []Note{{"details": single}}
	}

	return []Note{}
}
