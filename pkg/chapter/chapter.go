// Package chapter provides the chapter value object and the list-level
// invariants enforced on every analysis result.
package chapter

import (
	"fmt"
	"strings"
)

// Chapter marks the start of a logical section in the source recording.
type Chapter struct {
	Timestamp float64 `json:"timestamp"`
	Title     string  `json:"title"`
}

// New constructs a validated chapter. The title is trimmed.
func New(timestamp float64, title string) (Chapter, error) {
	c := Chapter{Timestamp: timestamp, Title: strings.TrimSpace(title)}
	if err := c.Validate(); err != nil {
		return Chapter{}, err
	}
	return c, nil
}

// Validate checks the per-chapter invariants.
func (c Chapter) Validate() error {
	if c.Timestamp < 0 {
		return fmt.Errorf("timestamp must be non-negative, got %v", c.Timestamp)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title must be a non-empty string")
	}
	return nil
}

// ValidateList checks the list-level invariants: every chapter valid,
// timestamps strictly ascending and pairwise distinct, list non-empty.
func ValidateList(chapters []Chapter) error {
	if len(chapters) == 0 {
		return fmt.Errorf("chapter list cannot be empty")
	}

	for i, c := range chapters {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chapter %d: %w", i, err)
		}
	}

	for i := 1; i < len(chapters); i++ {
		if chapters[i].Timestamp == chapters[i-1].Timestamp {
			return fmt.Errorf("chapter timestamps must be unique, %v appears more than once", chapters[i].Timestamp)
		}
		if chapters[i].Timestamp < chapters[i-1].Timestamp {
			return fmt.Errorf("chapter timestamps must be in ascending order")
		}
	}

	// Non-adjacent duplicates imply out-of-order timestamps, but check the
	// whole list anyway to report duplicates as duplicates.
	seen := make(map[float64]bool, len(chapters))
	for _, c := range chapters {
		if seen[c.Timestamp] {
			return fmt.Errorf("chapter timestamps must be unique, %v appears more than once", c.Timestamp)
		}
		seen[c.Timestamp] = true
	}

	return nil
}
