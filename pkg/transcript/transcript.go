// Package transcript provides the transcript value objects produced by the
// transcription step and consumed read-only by the analysis layer.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chaptermark/chaptermark/pkg/errs"
)

// Segment is a single span of transcribed audio with timing information.
type Segment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// Validate checks the segment timing invariants.
func (s Segment) Validate() error {
	if s.StartTime < 0 {
		return fmt.Errorf("start_time must be non-negative, got %v", s.StartTime)
	}
	if s.EndTime < 0 {
		return fmt.Errorf("end_time must be non-negative, got %v", s.EndTime)
	}
	if s.EndTime < s.StartTime {
		return fmt.Errorf("end_time (%v) must be >= start_time (%v)", s.EndTime, s.StartTime)
	}
	return nil
}

// Transcript is a complete transcript with timestamped segments. It is
// immutable once constructed; one instance spans a single pipeline run.
type Transcript struct {
	Segments []Segment `json:"segments"`
	FullText string    `json:"full_text"`
	Duration float64   `json:"duration"`
}

// New constructs a validated transcript.
func New(segments []Segment, fullText string, duration float64) (*Transcript, error) {
	t := &Transcript{Segments: segments, FullText: fullText, Duration: duration}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the transcript and per-segment invariants.
func (t *Transcript) Validate() error {
	if t.Duration < 0 {
		return fmt.Errorf("duration must be non-negative, got %v", t.Duration)
	}
	for i, segment := range t.Segments {
		if err := segment.Validate(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// SaveFile writes the transcript as pretty-printed JSON, creating parent
// directories as needed.
func (t *Transcript) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindFileSystem, "failed to create transcript directory", map[string]any{
			"file_path": path,
			"operation": "transcript save",
		}, err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindFileSystem, "failed to encode transcript", map[string]any{
			"file_path": path,
			"operation": "transcript save",
		}, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindFileSystem, "failed to write transcript file", map[string]any{
			"file_path": path,
			"operation": "transcript save",
		}, err)
	}
	return nil
}

// LoadFile reads a transcript previously written by SaveFile.
func LoadFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindFileSystem, "failed to read transcript file", map[string]any{
			"file_path": path,
			"operation": "transcript load",
		}, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid transcript file", map[string]any{
			"file_path": path,
			"operation": "transcript load",
		}, err)
	}
	for _, field := range []string{"segments", "full_text", "duration"} {
		if _, ok := raw[field]; !ok {
			return nil, errs.Validation(fmt.Sprintf("invalid transcript file: missing %q field", field), map[string]any{
				"file_path": path,
				"operation": "transcript load",
			})
		}
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid transcript file", map[string]any{
			"file_path": path,
			"operation": "transcript load",
		}, err)
	}
	if err := t.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid transcript data", map[string]any{
			"file_path": path,
			"operation": "transcript load",
		}, err)
	}
	return &t, nil
}
