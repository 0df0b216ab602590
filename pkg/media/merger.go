package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/executor"
	"github.com/chaptermark/chaptermark/pkg/logging"
)

// Merger embeds chapter markers into a media container with ffmpeg.
type Merger struct {
	exec executor.Executor

	// OverlayTitles burns each chapter title into the video frames. This
	// forces a re-encode, so it is off unless explicitly requested.
	OverlayTitles bool
}

// NewMerger builds a merger over the given command executor.
func NewMerger(exec executor.Executor) *Merger {
	return &Merger{exec: exec}
}

// MergeChapters writes a copy of inputPath with the chapters embedded as
// container metadata and returns the output path.
func (m *Merger) MergeChapters(ctx context.Context, inputPath, outputPath string, chapters []chapter.Chapter) (string, error) {
	log := logging.NewLogger(ctx)

	if err := chapter.ValidateList(chapters); err != nil {
		return "", errs.Wrap(errs.KindValidation, "cannot merge an invalid chapter list", map[string]any{
			"file_path": inputPath,
			"operation": "chapter merge",
		}, err)
	}
	if !m.exec.LookPath("ffmpeg") {
		return "", errs.Dependency("ffmpeg is not installed", map[string]any{
			"dependency": "ffmpeg",
			"operation":  "chapter merge",
			"suggestion": "install ffmpeg and make sure it is on PATH",
		})
	}

	metadataFile, err := writeMetadataFile(chapters)
	if err != nil {
		return "", err
	}
	defer os.Remove(metadataFile)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", errs.Wrap(errs.KindFileSystem, "failed to create output directory", map[string]any{
			"file_path": outputPath,
			"operation": "chapter merge",
		}, err)
	}

	args := []string{"-i", inputPath, "-i", metadataFile, "-map_metadata", "1"}
	if m.OverlayTitles {
		args = append(args, "-vf", overlayFilter(chapters))
	} else {
		args = append(args, "-codec", "copy")
	}
	args = append(args, "-y", outputPath)

	log.Infof("embedding %d chapters into %q", len(chapters), outputPath)

	if _, err := m.exec.Execute(ctx, "ffmpeg", args...); err != nil {
		return "", errs.Wrap(errs.KindDependency, "ffmpeg chapter merge failed", map[string]any{
			"dependency": "ffmpeg",
			"file_path":  inputPath,
			"operation":  "chapter merge",
		}, err)
	}

	return outputPath, nil
}

func writeMetadataFile(chapters []chapter.Chapter) (string, error) {
	file, err := os.CreateTemp("", "chaptermark-metadata-*.txt")
	if err != nil {
		return "", errs.Wrap(errs.KindFileSystem, "failed to create metadata file", map[string]any{
			"operation": "chapter merge",
		}, err)
	}

	if _, err := file.WriteString(chapter.FFmpegMetadata(chapters)); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", errs.Wrap(errs.KindFileSystem, "failed to write metadata file", map[string]any{
			"file_path": file.Name(),
			"operation": "chapter merge",
		}, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", errs.Wrap(errs.KindFileSystem, "failed to close metadata file", map[string]any{
			"file_path": file.Name(),
			"operation": "chapter merge",
		}, err)
	}
	return file.Name(), nil
}

// overlayFilter builds a drawtext filter chain showing each chapter title
// from its start until the next chapter begins.
func overlayFilter(chapters []chapter.Chapter) string {
	filters := make([]string, 0, len(chapters))
	for i, c := range chapters {
		end := "inf"
		if i+1 < len(chapters) {
			end = fmt.Sprintf("%g", chapters[i+1].Timestamp)
		}
		title := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(c.Title)
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':x=(w-text_w)/2:y=h-60:fontsize=36:fontcolor=white:box=1:boxcolor=black@0.5:enable='between(t,%g,%s)'",
			title, c.Timestamp, end,
		))
	}
	return strings.Join(filters, ",")
}
