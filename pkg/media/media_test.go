package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/errs"
)

// fakeExecutor records invocations instead of running binaries.
type fakeExecutor struct {
	hasBinary bool
	execErr   error

	lastName string
	lastArgs []string

	// onExecute runs during Execute, while temp files still exist.
	onExecute func(name string, args []string)
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	f.lastName = name
	f.lastArgs = args
	if f.onExecute != nil {
		f.onExecute(name, args)
	}
	if f.execErr != nil {
		return "", f.execErr
	}
	return "", nil
}

func (f *fakeExecutor) LookPath(name string) bool {
	return f.hasBinary
}

type MediaSuite struct {
	suite.Suite
}

func TestMediaSuite(t *testing.T) {
	suite.Run(t, new(MediaSuite))
}

func (s *MediaSuite) TestDetectFileType() {
	s.Equal(FileTypeAudio, DetectFileType("meeting.mp3"))
	s.Equal(FileTypeAudio, DetectFileType("/tmp/recording.WAV"))
	s.Equal(FileTypeVideo, DetectFileType("standup.mkv"))
	s.Equal(FileTypeVideo, DetectFileType("demo.mp4"))
	s.Equal(FileTypeUnknown, DetectFileType("notes.txt"))
	s.Equal(FileTypeUnknown, DetectFileType("noextension"))
}

func (s *MediaSuite) TestExtractAudioBuildsFFmpegCommand() {
	dir := s.T().TempDir()
	input := filepath.Join(dir, "meeting.mkv")
	require.NoError(s.T(), os.WriteFile(input, []byte("fake video"), 0o644))

	exec := &fakeExecutor{hasBinary: true}
	extractor := NewExtractor(exec)

	output, err := extractor.ExtractAudio(context.Background(), input, filepath.Join(dir, "out"))
	require.NoError(s.T(), err)

	s.Equal(filepath.Join(dir, "out", "meeting.mp3"), output)
	s.Equal("ffmpeg", exec.lastName)
	s.Contains(exec.lastArgs, "-vn")
	s.Contains(exec.lastArgs, "libmp3lame")
	s.Contains(exec.lastArgs, output)
}

func (s *MediaSuite) TestExtractAudioMissingInputIsFileSystemError() {
	exec := &fakeExecutor{hasBinary: true}
	extractor := NewExtractor(exec)

	_, err := extractor.ExtractAudio(context.Background(), "/nonexistent/meeting.mkv", s.T().TempDir())
	s.True(errs.IsKind(err, errs.KindFileSystem))
}

func (s *MediaSuite) TestExtractAudioMissingFFmpegIsDependencyError() {
	dir := s.T().TempDir()
	input := filepath.Join(dir, "meeting.mkv")
	require.NoError(s.T(), os.WriteFile(input, []byte("fake video"), 0o644))

	extractor := NewExtractor(&fakeExecutor{hasBinary: false})

	_, err := extractor.ExtractAudio(context.Background(), input, dir)
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindDependency))
	s.Contains(err.Error(), "ffmpeg")
}

func (s *MediaSuite) sampleChapters() []chapter.Chapter {
	return []chapter.Chapter{
		{Timestamp: 0, Title: "Introduction"},
		{Timestamp: 60, Title: "Main Discussion"},
	}
}

func (s *MediaSuite) TestMergeChaptersWritesMetadataFile() {
	dir := s.T().TempDir()

	var metadata string
	exec := &fakeExecutor{hasBinary: true, onExecute: func(name string, args []string) {
		data, err := os.ReadFile(args[3])
		require.NoError(s.T(), err)
		metadata = string(data)
	}}
	merger := NewMerger(exec)

	output := filepath.Join(dir, "meeting_chaptered.mkv")
	result, err := merger.MergeChapters(context.Background(), filepath.Join(dir, "meeting.mkv"), output, s.sampleChapters())
	require.NoError(s.T(), err)

	s.Equal(output, result)
	s.Equal("ffmpeg", exec.lastName)
	s.Contains(exec.lastArgs, "-map_metadata")
	s.Contains(exec.lastArgs, "copy")
	s.Contains(metadata, ";FFMETADATA1")
	s.Contains(metadata, "title=Introduction")
	s.Contains(metadata, "title=Main Discussion")
}

func (s *MediaSuite) TestMergeChaptersCleansUpMetadataFile() {
	dir := s.T().TempDir()

	var metadataPath string
	exec := &fakeExecutor{hasBinary: true, onExecute: func(name string, args []string) {
		metadataPath = args[3]
	}}
	merger := NewMerger(exec)

	_, err := merger.MergeChapters(context.Background(), filepath.Join(dir, "in.mkv"), filepath.Join(dir, "out.mkv"), s.sampleChapters())
	require.NoError(s.T(), err)

	_, err = os.Stat(metadataPath)
	s.True(os.IsNotExist(err))
}

func (s *MediaSuite) TestMergeChaptersRejectsInvalidList() {
	merger := NewMerger(&fakeExecutor{hasBinary: true})

	unordered := []chapter.Chapter{
		{Timestamp: 60, Title: "Second"},
		{Timestamp: 0, Title: "First"},
	}
	_, err := merger.MergeChapters(context.Background(), "in.mkv", "out.mkv", unordered)
	s.True(errs.IsKind(err, errs.KindValidation))
}

func (s *MediaSuite) TestMergeChaptersMissingFFmpegIsDependencyError() {
	merger := NewMerger(&fakeExecutor{hasBinary: false})

	_, err := merger.MergeChapters(context.Background(), "in.mkv", "out.mkv", s.sampleChapters())
	s.True(errs.IsKind(err, errs.KindDependency))
}

func (s *MediaSuite) TestOverlayEnabledUsesDrawtext() {
	dir := s.T().TempDir()
	exec := &fakeExecutor{hasBinary: true}
	merger := NewMerger(exec)
	merger.OverlayTitles = true

	_, err := merger.MergeChapters(context.Background(), filepath.Join(dir, "in.mkv"), filepath.Join(dir, "out.mkv"), s.sampleChapters())
	require.NoError(s.T(), err)

	s.Contains(exec.lastArgs, "-vf")
	s.NotContains(exec.lastArgs, "copy")
	joined := ""
	for _, arg := range exec.lastArgs {
		joined += arg + " "
	}
	s.Contains(joined, "drawtext")
	s.Contains(joined, "Introduction")
}
