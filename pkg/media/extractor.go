package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/executor"
	"github.com/chaptermark/chaptermark/pkg/logging"
)

// Extractor pulls the audio track out of a video file with ffmpeg.
type Extractor struct {
	exec executor.Executor
}

// NewExtractor builds an extractor over the given command executor.
func NewExtractor(exec executor.Executor) *Extractor {
	return &Extractor{exec: exec}
}

// ExtractAudio writes the input's audio track as an mp3 into outputDir and
// returns the output path. The input must exist and ffmpeg must be on PATH.
func (e *Extractor) ExtractAudio(ctx context.Context, inputPath, outputDir string) (string, error) {
	log := logging.NewLogger(ctx)

	if _, err := os.Stat(inputPath); err != nil {
		return "", errs.Wrap(errs.KindFileSystem, "input file not found", map[string]any{
			"file_path": inputPath,
			"operation": "audio extraction",
		}, err)
	}
	if !e.exec.LookPath("ffmpeg") {
		return "", errs.Dependency("ffmpeg is not installed", map[string]any{
			"dependency": "ffmpeg",
			"operation":  "audio extraction",
			"suggestion": "install ffmpeg and make sure it is on PATH",
		})
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errs.Wrap(errs.KindFileSystem, "failed to create output directory", map[string]any{
			"file_path": outputDir,
			"operation": "audio extraction",
		}, err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".mp3")

	log.Infof("extracting audio from %q to %q", inputPath, outputPath)

	_, err := e.exec.Execute(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-y",
		outputPath,
	)
	if err != nil {
		return "", errs.Wrap(errs.KindDependency, "ffmpeg audio extraction failed", map[string]any{
			"dependency": "ffmpeg",
			"file_path":  inputPath,
			"operation":  "audio extraction",
		}, err)
	}

	return outputPath, nil
}
