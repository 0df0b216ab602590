package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

type OllamaSuite struct {
	suite.Suite
	transcript *transcript.Transcript
}

func TestOllamaSuite(t *testing.T) {
	suite.Run(t, new(OllamaSuite))
}

func (s *OllamaSuite) SetupTest() {
	t, err := transcript.New([]transcript.Segment{
		{StartTime: 0, EndTime: 30, Text: "Hello everyone"},
		{StartTime: 30, EndTime: 60, Text: "Let's discuss the project"},
	}, "Hello everyone Let's discuss the project", 60)
	require.NoError(s.T(), err)
	s.transcript = t
}

// fakeService builds an httptest server exposing /api/tags with the given
// model names and /api/generate with a fixed response body. Other paths get
// a 404, which makes the repair round fail deterministically.
func fakeService(t *testing.T, models []string, generateResponse string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		entries := make([]map[string]string, 0, len(models))
		for _, name := range models {
			entries = append(entries, map[string]string{"name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": entries})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model   string         `json:"model"`
			Stream  bool           `json:"stream"`
			Format  string         `json:"format"`
			Options map[string]any `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "llama3.1", payload.Model)
		require.False(t, payload.Stream)
		require.Equal(t, "json", payload.Format)
		require.Equal(t, 0.1, payload.Options["temperature"])

		_ = json.NewEncoder(w).Encode(map[string]string{"response": generateResponse})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const analysisResponse = `{
  "chapters": [
    {"timestamp_original": 0, "timestamp_in_minutes": 0, "title": "Introduction"},
    {"timestamp_original": 30, "timestamp_in_minutes": 0.5, "title": "Project Discussion"}
  ],
  "notes": [
    {"timestamp_original": 30, "details": "Review the project plan."}
  ]
}`

func (s *OllamaSuite) TestNewRequiresModel() {
	_, err := New("", "http://localhost:11434", time.Minute, nil)
	s.True(errs.IsKind(err, errs.KindValidation))
}

func (s *OllamaSuite) TestNewRequiresBaseURL() {
	_, err := New("llama3.1", "", time.Minute, nil)
	s.True(errs.IsKind(err, errs.KindValidation))
}

func (s *OllamaSuite) TestAvailableWhenModelListed() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, "")
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	s.True(backend.IsAvailable(context.Background()))
}

func (s *OllamaSuite) TestAvailableMatchesExactName() {
	server := fakeService(s.T(), []string{"llama3.1"}, "")
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	s.True(backend.IsAvailable(context.Background()))
}

func (s *OllamaSuite) TestUnavailableWhenModelMissing() {
	server := fakeService(s.T(), []string{"mistral:7b"}, "")
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	s.False(backend.IsAvailable(context.Background()))
}

func (s *OllamaSuite) TestUnavailableWhenServiceDown() {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	backend, err := New("llama3.1", url, time.Minute, nil)
	require.NoError(s.T(), err)

	s.False(backend.IsAvailable(context.Background()))
}

func (s *OllamaSuite) TestAnalyzeParsesChaptersAndNotes() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	result, err := backend.Analyze(context.Background(), s.transcript, provider.SaveOptions{})
	require.NoError(s.T(), err)

	require.Len(s.T(), result.Chapters, 2)
	s.Equal("Introduction", result.Chapters[0].Title)
	s.Equal(30.0, result.Chapters[1].Timestamp)
	require.Len(s.T(), result.Notes, 1)
	s.Equal("Review the project plan.", result.Notes[0]["details"])
}

func (s *OllamaSuite) TestAnalyzeSavesRawResponseAndNotes() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	dir := s.T().TempDir()
	save := provider.SaveOptions{
		RawResponsePath: filepath.Join(dir, "raw", "response.txt"),
		NotesPath:       filepath.Join(dir, "notes.json"),
	}

	_, err = backend.Analyze(context.Background(), s.transcript, save)
	require.NoError(s.T(), err)

	raw, err := os.ReadFile(save.RawResponsePath)
	require.NoError(s.T(), err)
	s.Equal(analysisResponse, string(raw))

	var notes []map[string]any
	notesData, err := os.ReadFile(save.NotesPath)
	require.NoError(s.T(), err)
	require.NoError(s.T(), json.Unmarshal(notesData, &notes))
	s.Len(notes, 1)
}

func (s *OllamaSuite) TestAnalyzeEmptyTranscriptIsValidationError() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	empty := &transcript.Transcript{}
	_, err = backend.Analyze(context.Background(), empty, provider.SaveOptions{})
	s.True(errs.IsKind(err, errs.KindValidation))
}

func (s *OllamaSuite) TestAnalyzeUnavailableIsDependencyError() {
	server := fakeService(s.T(), []string{"mistral:7b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	_, err = backend.Analyze(context.Background(), s.transcript, provider.SaveOptions{})
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindDependency))
	s.Contains(err.Error(), "llama3.1")
	s.Contains(err.Error(), "ollama pull")
}

func (s *OllamaSuite) TestAnalyzeGarbageResponseIsProcessingError() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, "I have no idea what to do with this.")
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	_, err = backend.Analyze(context.Background(), s.transcript, provider.SaveOptions{})
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindProcessing))
}

func (s *OllamaSuite) TestAnalyzeUnorderedChaptersIsProcessingError() {
	response := `{"chapters": [
		{"timestamp_original": 30, "title": "Second"},
		{"timestamp_original": 0, "title": "First"}
	], "notes": []}`
	server := fakeService(s.T(), []string{"llama3.1:8b"}, response)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	_, err = backend.Analyze(context.Background(), s.transcript, provider.SaveOptions{})
	require.Error(s.T(), err)
	s.True(errs.IsKind(err, errs.KindProcessing))
}

func (s *OllamaSuite) TestReviewRequiresPriorResult() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	_, err = backend.Review(context.Background(), nil, s.transcript, provider.SaveOptions{})
	s.True(errs.IsKind(err, errs.KindValidation))
}

func (s *OllamaSuite) TestReviewAugmentsPriorResult() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, analysisResponse)
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	prior, err := provider.ParseAnalysis(analysisResponse)
	require.NoError(s.T(), err)

	result, err := backend.Review(context.Background(), prior, s.transcript, provider.SaveOptions{})
	require.NoError(s.T(), err)
	s.Len(result.Chapters, 2)
}

func (s *OllamaSuite) TestInfoReportsLocalKind() {
	server := fakeService(s.T(), []string{"llama3.1:8b"}, "")
	backend, err := New("llama3.1", server.URL, time.Minute, nil)
	require.NoError(s.T(), err)

	info := backend.Info(context.Background())
	s.Equal("Ollama", info.Name)
	s.Equal(provider.KindLocal, info.Kind)
	s.Equal("llama3.1", info.Model)
	s.True(info.Available)
}
