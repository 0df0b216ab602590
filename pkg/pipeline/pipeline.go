// Package pipeline drives a full processing run: audio extraction,
// transcription, AI analysis, and chapter embedding.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/config"
	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/executor"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/media"
	"github.com/chaptermark/chaptermark/pkg/orchestrator"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/transcribe"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

// Result collects everything a run produced.
type Result struct {
	InputPath      string
	AudioPath      string
	TranscriptPath string
	SubtitlePath   string
	OutputPath     string
	Chapters       []chapter.Chapter
	Notes          []provider.Note
	Warnings       []string
}

type analyzer interface {
	Analyze(ctx context.Context, t *transcript.Transcript, save provider.SaveOptions) (*provider.Result, error)
}

type audioExtractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputDir string) (string, error)
}

type chapterMerger interface {
	MergeChapters(ctx context.Context, inputPath, outputPath string, chapters []chapter.Chapter) (string, error)
}

type audioTranscriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) (*transcript.Transcript, error)
}

// Pipeline holds the collaborators for a run. Construct with New.
type Pipeline struct {
	cfg         *config.Config
	analyzer    analyzer
	extractor   audioExtractor
	merger      chapterMerger
	transcriber audioTranscriber
}

// New wires a pipeline from configuration.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exec := executor.New()
	merger := media.NewMerger(exec)
	merger.OverlayTitles = cfg.OverlayChapterTitles

	return &Pipeline{
		cfg:         cfg,
		analyzer:    orch,
		extractor:   media.NewExtractor(exec),
		merger:      merger,
		transcriber: transcribe.NewTranscriber(exec, cfg.WhisperBinary, cfg.WhisperModelPath, cfg.WhisperLanguage, cfg.WhisperThreads),
	}, nil
}

// Run processes one recording end to end. Subtitle and merge failures are
// downgraded to warnings; extraction, transcription, and analysis failures
// abort the run.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	log := logging.NewLogger(ctx)
	result := &Result{InputPath: inputPath}

	fileType := media.DetectFileType(inputPath)
	if fileType == media.FileTypeUnknown {
		return nil, errs.Validation("unsupported input file type", map[string]any{
			"file_path": inputPath,
			"operation": "pipeline run",
		})
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputDir := p.cfg.OutputDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindFileSystem, "failed to create output directory", map[string]any{
			"file_path": outputDir,
			"operation": "pipeline run",
		}, err)
	}

	// Step 1: audio.
	audioPath := inputPath
	if fileType == media.FileTypeVideo {
		existing := filepath.Join(outputDir, base+".mp3")
		if p.cfg.SkipExisting && fileExists(existing) {
			log.Infof("reusing existing audio %q", existing)
			audioPath = existing
		} else {
			extracted, err := p.extractor.ExtractAudio(ctx, inputPath, outputDir)
			if err != nil {
				return nil, err
			}
			audioPath = extracted
		}
	}
	result.AudioPath = audioPath

	// Step 2: transcript.
	transcriptPath := filepath.Join(outputDir, base+"_transcript.json")
	t, err := p.loadOrTranscribe(ctx, audioPath, outputDir, transcriptPath, result)
	if err != nil {
		return nil, err
	}
	result.TranscriptPath = transcriptPath

	// Step 3: subtitles (best effort).
	subtitlePath := filepath.Join(outputDir, base+".srt")
	if err := t.SaveSRT(subtitlePath); err != nil {
		p.warn(ctx, result, fmt.Sprintf("failed to write subtitles: %v", err))
	} else {
		result.SubtitlePath = subtitlePath
	}

	// Step 4: AI analysis.
	save := provider.SaveOptions{
		RawResponsePath: filepath.Join(outputDir, base+"_response.txt"),
		NotesPath:       filepath.Join(outputDir, base+"_notes.json"),
	}
	analysis, err := p.analyzer.Analyze(ctx, t, save)
	if err != nil {
		return nil, err
	}
	result.Chapters = analysis.Chapters
	result.Notes = analysis.Notes

	// Step 5: chapter embedding (video only, best effort).
	if fileType == media.FileTypeVideo {
		outputPath := filepath.Join(outputDir, base+"_chaptered"+filepath.Ext(inputPath))
		merged, err := p.merger.MergeChapters(ctx, inputPath, outputPath, analysis.Chapters)
		if err != nil {
			p.warn(ctx, result, fmt.Sprintf("failed to embed chapters: %v", err))
		} else {
			result.OutputPath = merged
		}
	}

	log.Infof("pipeline finished: %d chapters, %d notes, %d warnings",
		len(result.Chapters), len(result.Notes), len(result.Warnings))
	return result, nil
}

func (p *Pipeline) loadOrTranscribe(ctx context.Context, audioPath, outputDir, transcriptPath string, result *Result) (*transcript.Transcript, error) {
	log := logging.NewLogger(ctx)

	if p.cfg.SkipExisting && fileExists(transcriptPath) {
		t, err := transcript.LoadFile(transcriptPath)
		if err == nil {
			log.Infof("reusing existing transcript %q", transcriptPath)
			return t, nil
		}
		p.warn(ctx, result, fmt.Sprintf("existing transcript unusable, re-transcribing: %v", err))
	}

	t, err := p.transcriber.Transcribe(ctx, audioPath, outputDir)
	if err != nil {
		return nil, err
	}
	if err := t.SaveFile(transcriptPath); err != nil {
		p.warn(ctx, result, fmt.Sprintf("failed to persist transcript: %v", err))
	}
	return t, nil
}

func (p *Pipeline) warn(ctx context.Context, result *Result, message string) {
	logging.NewLogger(ctx).Warnf("%s", message)
	result.Warnings = append(result.Warnings, message)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
