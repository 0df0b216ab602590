// Package transcribe wraps the whisper.cpp CLI and converts its JSON output
// into transcript values.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/executor"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

// Transcriber runs whisper.cpp against an audio file.
type Transcriber struct {
	exec      executor.Executor
	binary    string
	modelPath string
	language  string
	threads   int
}

// NewTranscriber builds a transcriber over the given command executor.
func NewTranscriber(exec executor.Executor, binary, modelPath, language string, threads int) *Transcriber {
	return &Transcriber{exec: exec, binary: binary, modelPath: modelPath, language: language, threads: threads}
}

// Transcribe runs whisper.cpp on audioPath, writing its JSON output into
// outputDir, and returns the parsed transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outputDir string) (*transcript.Transcript, error) {
	log := logging.NewLogger(ctx)

	if _, err := os.Stat(audioPath); err != nil {
		return nil, errs.Wrap(errs.KindFileSystem, "audio file not found", map[string]any{
			"file_path": audioPath,
			"operation": "transcription",
		}, err)
	}
	if !t.available() {
		return nil, errs.Dependency("whisper.cpp binary not found", map[string]any{
			"dependency": t.binary,
			"operation":  "transcription",
			"suggestion": "build whisper.cpp and set WHISPER_BINARY to the binary path",
		})
	}
	if _, err := os.Stat(t.modelPath); err != nil {
		return nil, errs.Wrap(errs.KindDependency, "whisper model file not found", map[string]any{
			"dependency": t.binary,
			"file_path":  t.modelPath,
			"operation":  "transcription",
			"suggestion": "download a ggml model and set WHISPER_MODEL_PATH",
		}, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindFileSystem, "failed to create output directory", map[string]any{
			"file_path": outputDir,
			"operation": "transcription",
		}, err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outputPrefix := filepath.Join(outputDir, base)

	log.Infof("transcribing %q with %s (model %q)", audioPath, t.binary, t.modelPath)

	_, err := t.exec.Execute(ctx, t.binary,
		"-m", t.modelPath,
		"-f", audioPath,
		"-l", t.language,
		"-t", strconv.Itoa(t.threads),
		"-oj",
		"-of", outputPrefix,
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependency, "whisper.cpp transcription failed", map[string]any{
			"dependency": t.binary,
			"file_path":  audioPath,
			"operation":  "transcription",
		}, err)
	}

	outputFile := outputPrefix + ".json"
	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, errs.Wrap(errs.KindFileSystem, "whisper.cpp output file not found", map[string]any{
			"file_path": outputFile,
			"operation": "transcription",
		}, err)
	}

	result, err := ParseWhisperOutput(data)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "failed to parse whisper.cpp output", map[string]any{
			"file_path": outputFile,
			"operation": "transcription",
		}, err)
	}
	return result, nil
}

// available accepts either a PATH-resolvable name or an explicit file path.
func (t *Transcriber) available() bool {
	if t.exec.LookPath(t.binary) {
		return true
	}
	if strings.ContainsRune(t.binary, os.PathSeparator) {
		_, err := os.Stat(t.binary)
		return err == nil
	}
	return false
}

// ParseWhisperOutput converts whisper.cpp JSON (millisecond offsets) into a
// transcript with second-based timestamps.
func ParseWhisperOutput(data []byte) (*transcript.Transcript, error) {
	var output struct {
		Transcription []struct {
			Offsets struct {
				From int64 `json:"from"`
				To   int64 `json:"to"`
			} `json:"offsets"`
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("invalid whisper JSON: %w", err)
	}
	if len(output.Transcription) == 0 {
		return nil, fmt.Errorf("whisper output contains no transcription segments")
	}

	segments := make([]transcript.Segment, 0, len(output.Transcription))
	texts := make([]string, 0, len(output.Transcription))
	var duration float64

	for _, item := range output.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		segment := transcript.Segment{
			StartTime: float64(item.Offsets.From) / 1000.0,
			EndTime:   float64(item.Offsets.To) / 1000.0,
			Text:      text,
		}
		segments = append(segments, segment)
		texts = append(texts, text)
		if segment.EndTime > duration {
			duration = segment.EndTime
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("whisper output contains only empty segments")
	}

	return transcript.New(segments, strings.Join(texts, " "), duration)
}
