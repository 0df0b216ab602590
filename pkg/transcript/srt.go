package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/errs"
)

// SRT renders the transcript in SubRip subtitle format.
func (t *Transcript) SRT() string {
	var b strings.Builder
	for i, segment := range t.Segments {
		b.WriteString(fmt.Sprintf("%d\n", i+1))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTimestamp(segment.StartTime), formatSRTTimestamp(segment.EndTime)))
		b.WriteString(strings.TrimSpace(segment.Text))
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// SaveSRT writes the transcript as an SRT subtitle file. Players such as VLC
// pick the file up automatically when it shares the video's base name.
func (t *Transcript) SaveSRT(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindFileSystem, "failed to create subtitle directory", map[string]any{
			"file_path": path,
			"operation": "subtitle generation",
		}, err)
	}
	if err := os.WriteFile(path, []byte(t.SRT()), 0o644); err != nil {
		return errs.Wrap(errs.KindFileSystem, "failed to write subtitle file", map[string]any{
			"file_path": path,
			"operation": "subtitle generation",
		}, err)
	}
	return nil
}

// formatSRTTimestamp renders seconds as HH:MM:SS,mmm.
func formatSRTTimestamp(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
