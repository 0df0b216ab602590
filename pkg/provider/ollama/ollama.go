// Package ollama implements the local inference backend over the Ollama HTTP
// API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ollamasdk "github.com/rozoomcool/go-ollama-sdk"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/transcript"
	"github.com/chaptermark/chaptermark/pkg/utils"
)

const (
	providerName = "Ollama"

	// The availability probe must answer fast even when a generation call
	// would be allowed to run for minutes.
	probeTimeout = 5 * time.Second

	defaultTemperature = 0.1
	defaultNumPredict  = 4000
)

// Backend talks to a local Ollama service. Generation goes through
// /api/generate with format=json; a failed parse gets one chat-based repair
// round before giving up.
type Backend struct {
	model      string
	baseURL    string
	params     map[string]any
	httpClient *http.Client
	apiClient  *ollamasdk.OllamaClient
}

// New builds an Ollama backend for the given model. params override the
// default generation options (temperature, num_predict).
func New(model, baseURL string, timeout time.Duration, params map[string]any) (*Backend, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errs.Validation("Ollama model name is required", map[string]any{
			"operation": "backend construction",
		})
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errs.Validation("Ollama base URL is required", map[string]any{
			"operation": "backend construction",
		})
	}

	options := map[string]any{
		"temperature": defaultTemperature,
		"num_predict": defaultNumPredict,
	}
	for key, value := range params {
		options[key] = value
	}

	return &Backend{
		model:      model,
		baseURL:    baseURL,
		params:     options,
		httpClient: &http.Client{Timeout: timeout},
		apiClient:  ollamasdk.NewClient(baseURL),
	}, nil
}

// IsAvailable probes the service live on every call: a reachable /api/tags
// endpoint listing the configured model. Any failure downgrades to false.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	for _, entry := range tags.Models {
		if strings.Contains(entry.Name, b.model) || strings.HasPrefix(entry.Name, b.model) {
			return true
		}
	}
	return false
}

// Analyze runs the chapter-identification prompt against the local model.
func (b *Backend) Analyze(ctx context.Context, t *transcript.Transcript, save provider.SaveOptions) (*provider.Result, error) {
	if err := validateTranscript(t); err != nil {
		return nil, err
	}
	return b.run(ctx, "analysis", provider.AnalysisPrompt(t), save)
}

// Review runs the review prompt, asking the model to add content the prior
// result missed.
func (b *Backend) Review(ctx context.Context, prior *provider.Result, t *transcript.Transcript, save provider.SaveOptions) (*provider.Result, error) {
	if err := validateTranscript(t); err != nil {
		return nil, err
	}
	if prior == nil || len(prior.Chapters) == 0 {
		return nil, errs.Validation("review requires a prior analysis result", map[string]any{
			"provider": providerName,
		})
	}
	return b.run(ctx, "review", provider.ReviewPrompt(prior, t), save)
}

// Info returns backend metadata including a live availability probe.
func (b *Backend) Info(ctx context.Context) provider.Info {
	return provider.Info{
		Name:      providerName,
		Kind:      provider.KindLocal,
		Model:     b.model,
		Available: b.IsAvailable(ctx),
	}
}

func (b *Backend) run(ctx context.Context, operation, prompt string, save provider.SaveOptions) (*provider.Result, error) {
	log := logging.NewLogger(ctx)

	if !b.IsAvailable(ctx) {
		return nil, errs.Dependency("Ollama model is not available", map[string]any{
			"dependency": "ollama",
			"operation":  operation,
			"model":      b.model,
			"base_url":   b.baseURL,
			"suggestion": fmt.Sprintf("start the Ollama service and pull the model with 'ollama pull %s'", b.model),
		})
	}

	log.Infof("provider=%s operation=%s model=%q base_url=%q", providerName, operation, b.model, b.baseURL)

	response, err := b.generate(ctx, prompt)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependency, "Ollama generation request failed", map[string]any{
			"dependency": "ollama",
			"operation":  operation,
			"model":      b.model,
			"base_url":   b.baseURL,
		}, err)
	}

	provider.SaveRawResponse(ctx, save.RawResponsePath, response)

	result, err := b.parseWithRepair(ctx, response)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "Ollama returned a response that could not be parsed", map[string]any{
			"provider":         providerName,
			"operation":        operation,
			"model":            b.model,
			"response_preview": preview(response),
		}, err)
	}

	if err := chapter.ValidateList(result.Chapters); err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "Ollama returned an invalid chapter list", map[string]any{
			"provider":  providerName,
			"operation": operation,
			"model":     b.model,
		}, err)
	}

	provider.SaveNotes(ctx, save.NotesPath, result.Notes)
	return result, nil
}

// generate calls /api/generate with streaming disabled and format=json.
func (b *Backend) generate(ctx context.Context, prompt string) (string, error) {
	payload := struct {
		Model   string         `json:"model"`
		Prompt  string         `json:"prompt"`
		Stream  bool           `json:"stream"`
		Format  string         `json:"format"`
		Options map[string]any `json:"options"`
	}{b.model, prompt, false, "json", b.params}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate returned status %d", resp.StatusCode)
	}

	var generated struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return generated.Response, nil
}

// parseWithRepair parses the response, and on failure asks the model once to
// reformat its own output into the expected contract before failing for good.
func (b *Backend) parseWithRepair(ctx context.Context, response string) (*provider.Result, error) {
	result, parseErr := provider.ParseAnalysis(response)
	if parseErr == nil {
		return result, nil
	}

	log := logging.NewLogger(ctx)
	log.Warnf("response parse failed, attempting repair round: %v", parseErr)

	messages := []ollamasdk.ChatMessage{
		{
			Role: "user",
			Content: "Reformat the following output into valid JSON with a 'chapters' array of " +
				"{timestamp_original, title} objects and a 'notes' array. Return only JSON.\n\n" +
				"Output:\n" + response,
		},
	}
	repaired, repairErr := b.apiClient.Chat(b.model, messages)
	if repairErr != nil {
		log.Warnf("repair round failed: %v", repairErr)
		return nil, parseErr
	}

	result, err := provider.ParseAnalysis(strings.TrimSpace(repaired))
	if err != nil {
		return nil, parseErr
	}
	return result, nil
}

func validateTranscript(t *transcript.Transcript) error {
	if t == nil || len(t.Segments) == 0 {
		return errs.Validation("transcript has no segments to analyze", map[string]any{
			"provider": providerName,
		})
	}
	return nil
}

func preview(response string) string {
	const limit = 200
	response = strings.TrimSpace(response)
	if len(response) <= limit {
		return response
	}
	return response[:limit] + "..."
}
