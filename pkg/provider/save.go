package provider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/chaptermark/chaptermark/pkg/logging"
)

// SaveRawResponse persists the raw backend response text. Persistence is a
// side channel: failures are logged, never propagated, so a failed write
// cannot abort an otherwise successful analysis.
func SaveRawResponse(ctx context.Context, path, response string) {
	if path == "" || response == "" {
		return
	}
	if err := writeFile(path, []byte(response)); err != nil {
		logging.NewLogger(ctx).Warnf("failed to save raw response to %q: %v", path, err)
	}
}

// SaveNotes persists parsed notes as a pretty-printed JSON array, with the
// same failure policy as SaveRawResponse.
func SaveNotes(ctx context.Context, path string, notes []Note) {
	if path == "" || len(notes) == 0 {
		return
	}

	log := logging.NewLogger(ctx)
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		log.Warnf("failed to encode notes for %q: %v", path, err)
		return
	}
	if err := writeFile(path, data); err != nil {
		log.Warnf("failed to save notes to %q: %v", path, err)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
