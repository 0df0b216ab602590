package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/chaptermark/chaptermark/pkg/errs"
)

type fakeExecutor struct {
	hasBinary bool
	execErr   error

	lastName  string
	lastArgs  []string
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

const whisperOutput = `{
  "transcription": [
    {"offsets": {"from": 0, "to": 30000}, "text": " Hello everyone"},
    {"offsets": {"from": 30000, "to": 60500}, "text": " Let's discuss the project"},
    {"offsets": {"from": 60500, "to": 61000}, "text": "   "}
  ]
}`

type WhisperSuite struct {
	suite.Suite
}

func TestWhisperSuite(t *testing.T) {
	suite.Run(t, new(WhisperSuite))
}

func (s *WhisperSuite) TestParseWhisperOutput() {
	result, err := ParseWhisperOutput([]byte(whisperOutput))
	require.NoError(s.T(), err)

	require.Len(s.T(), result.Segments, 2)
	s.Equal(0.0, result.Segments[0].StartTime)
	s.Equal(30.0, result.Segments[0].EndTime)
	s.Equal("Hello everyone", result.Segments[0].Text)
	s.Equal(30.0, result.Segments[1].StartTime)
	s.Equal(60.5, result.Segments[1].EndTime)
	s.Equal("Hello everyone Let's discuss the project", result.FullText)
	s.Equal(61.0, result.Duration)
}

func (s *WhisperSuite) TestParseWhisperOutputRejectsEmpty() {
	_, err := ParseWhisperOutput([]byte(`{"transcription": []}`))
	s.Error(err)
}

func (s *WhisperSuite) TestParseWhisperOutputRejectsInvalidJSON() {
	_, err := ParseWhisperOutput([]byte("not json"))
	s.Error(err)
}

func (s *WhisperSuite) TestTranscribeRunsWhisperAndParsesOutput() {
	dir := s.T().TempDir()
	audio := filepath.Join(dir, "meeting.mp3")
	model := filepath.Join(dir, "ggml-base.en.bin")
	require.NoError(s.T(), os.WriteFile(audio, []byte("fake audio"), 0o644))
	require.NoError(s.T(), os.WriteFile(model, []byte("fake model"), 0o644))

	outputDir := filepath.Join(dir, "out")
	exec := &fakeExecutor{hasBinary: true, onExecute: func(name string, args []string) {
		// whisper.cpp writes <prefix>.json when -oj is set.
		prefix := args[len(args)-1]
		require.NoError(s.T(), os.WriteFile(prefix+".json", []byte(whisperOutput), 0o644))
	}}

	transcriber := NewTranscriber(exec, "whisper-cli", model, "en", 4)
	result, err := transcriber.Transcribe(context.Background(), audio, outputDir)
	require.NoError(s.T(), err)

	s.Equal("whisper-cli", exec.lastName)
	s.Contains(exec.lastArgs, "-oj")
	s.Contains(exec.lastArgs, model)
	s.Contains(exec.lastArgs, audio)
	s.Len(result.Segments, 2)
}

func (s *WhisperSuite) TestTranscribeMissingAudioIsFileSystemError() {
	transcriber := NewTranscriber(&fakeExecutor{hasBinary: true}, "whisper-cli", "model.bin", "en", 4)

	_, err := transcriber.Transcribe(context.Background(), "/nonexistent/audio.mp3", s.T().TempDir())
	s.True(errs.IsKind(err, errs.KindFileSystem))
}

func (s *WhisperSuite) TestTranscribeMissingBinaryIsDependencyError() {
	dir := s.T().TempDir()
	audio := filepath.Join(dir, "meeting.mp3")
	require.NoError(s.T(), os.WriteFile(audio, []byte("fake audio"), 0o644))

	transcriber := NewTranscriber(&fakeExecutor{hasBinary: false}, "whisper-cli", "model.bin", "en", 4)

	_, err := transcriber.Transcribe(context.Background(), audio, dir)
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindDependency))
	s.Contains(err.Error(), "whisper")
}

func (s *WhisperSuite) TestTranscribeMissingModelIsDependencyError() {
	dir := s.T().TempDir()
	audio := filepath.Join(dir, "meeting.mp3")
	require.NoError(s.T(), os.WriteFile(audio, []byte("fake audio"), 0o644))

	transcriber := NewTranscriber(&fakeExecutor{hasBinary: true}, "whisper-cli", filepath.Join(dir, "missing.bin"), "en", 4)

	_, err := transcriber.Transcribe(context.Background(), audio, dir)
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindDependency))
	s.Contains(err.Error(), "model")
}
