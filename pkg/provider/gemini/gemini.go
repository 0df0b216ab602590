// Package gemini implements the external API backend over Google's Gemini
// models.
package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/transcript"
	"github.com/chaptermark/chaptermark/pkg/utils"
)

const (
	providerName = "Gemini"

	// DefaultModel is used when no model is configured explicitly.
	DefaultModel = "gemini-2.0-flash"

	// Template .env files ship this value; it must never be treated as a
	// usable credential.
	placeholderAPIKey = "your_api_key_here"
)

// Backend talks to the hosted Gemini API through the genai SDK.
type Backend struct {
	apiKey string
	model  string
	params map[string]any
	client *genai.Client
}

// New builds a Gemini backend. The API key is validated for presence here;
// whether it actually authenticates is only known at request time.
func New(ctx context.Context, apiKey, model string, params map[string]any) (*Backend, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errs.Validation("Gemini API key is required", map[string]any{
			"operation":  "backend construction",
			"suggestion": "set GEMINI_API_KEY in the environment or .env file",
		})
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindDependency, "failed to initialize Gemini client", map[string]any{
			"dependency": "gemini",
			"model":      model,
		}, err)
	}

	return &Backend{apiKey: apiKey, model: model, params: params, client: client}, nil
}

// IsAvailable checks that a plausible credential is configured. There is no
// free probe endpoint, so no network call is made; authentication failures
// surface on the first generation request instead.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	return b.client != nil && b.apiKey != "" && b.apiKey != placeholderAPIKey
}

// Analyze runs the chapter-identification prompt against the Gemini API.
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

// Info returns backend metadata.
func (b *Backend) Info(ctx context.Context) provider.Info {
	return provider.Info{
		Name:      providerName,
		Kind:      provider.KindExternalAPI,
		Model:     b.model,
		Available: b.IsAvailable(ctx),
	}
}

func (b *Backend) run(ctx context.Context, operation, prompt string, save provider.SaveOptions) (*provider.Result, error) {
	log := logging.NewLogger(ctx)

	if !b.IsAvailable(ctx) {
		return nil, errs.Dependency("Gemini API key is not configured", map[string]any{
			"dependency": "gemini",
			"operation":  operation,
			"model":      b.model,
			"suggestion": "set GEMINI_API_KEY to a real key, not the template placeholder",
		})
	}

	log.Infof("provider=%s operation=%s model=%q", providerName, operation, b.model)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	response, err := b.client.Models.GenerateContent(ctx, b.model, contents, b.generationConfig())
	if err != nil {
		if utils.ContainsErrorSubstring(err, "rate limit") || utils.ContainsErrorSubstring(err, "quota") {
			return nil, errs.Wrap(errs.KindDependency, "Gemini API rate limit exceeded", map[string]any{
				"dependency": "gemini",
				"operation":  operation,
				"model":      b.model,
				"suggestion": "wait for the quota window to reset or switch to the local provider",
			}, err)
		}
		return nil, errs.Wrap(errs.KindDependency, "Gemini API request failed", map[string]any{
			"dependency": "gemini",
			"operation":  operation,
			"model":      b.model,
		}, err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return nil, errs.Dependency("Gemini API returned an empty response", map[string]any{
			"dependency": "gemini",
			"operation":  operation,
			"model":      b.model,
		})
	}

	provider.SaveRawResponse(ctx, save.RawResponsePath, text)

	result, err := provider.ParseAnalysis(text)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "Gemini returned a response that could not be parsed", map[string]any{
			"provider":         providerName,
			"operation":        operation,
			"model":            b.model,
			"response_preview": preview(text),
		}, err)
	}

	if err := chapter.ValidateList(result.Chapters); err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "Gemini returned an invalid chapter list", map[string]any{
			"provider":  providerName,
			"operation": operation,
			"model":     b.model,
		}, err)
	}

	provider.SaveNotes(ctx, save.NotesPath, result.Notes)
	return result, nil
}

// generationConfig maps the generic model parameters onto the genai config.
// Unknown keys are ignored; the parameter surface is shared with the Ollama
// backend, which accepts a wider set.
func (b *Backend) generationConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if raw, ok := b.params["temperature"]; ok {
		if value, ok := toFloat64(raw); ok {
			temperature := float32(value)
			config.Temperature = &temperature
		}
	}
	if raw, ok := b.params["max_output_tokens"]; ok {
		if value, ok := toFloat64(raw); ok {
			config.MaxOutputTokens = int32(value)
		}
	}

	return config
}

func toFloat64(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
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
	if len(response) <= limit {
		return response
	}
	return response[:limit] + "..."
}
