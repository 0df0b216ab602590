// Package orchestrator selects among heterogeneous AI backends, falls back on
// failure, and drives the sequential multi-model review protocol.
package orchestrator

import (
	"context"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/config"
	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/provider/gemini"
	"github.com/chaptermark/chaptermark/pkg/provider/ollama"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

// Options controls fallback and review behavior.
type Options struct {
	EnableFallback bool
	EnableReview   bool

	// ReviewPasses counts the initial analysis as pass 1. A value of 3 runs
	// the analysis plus two review passes.
	ReviewPasses int
}

// Orchestrator owns a primary backend, an optional fallback backend, and an
// ordered review sequence. All fields are set at construction and read-only
// afterward.
type Orchestrator struct {
	primary  provider.Backend
	fallback provider.Backend
	sequence []provider.Backend
	opts     Options
}

// New builds an orchestrator from configuration: the configured provider
// becomes primary, the other becomes fallback when fallback is enabled, and
// each review model identifier is bound to a backend by name.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	log := logging.NewLogger(ctx)

	local, localErr := ollama.New(cfg.LocalModelName, cfg.OllamaBaseURL, cfg.AnalysisTimeout, cfg.ModelParameters)
	remote, remoteErr := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelParameters)

	o := &Orchestrator{
		opts: Options{
			EnableFallback: cfg.EnableFallback,
			EnableReview:   cfg.EnableReview,
			ReviewPasses:   cfg.ReviewPasses,
		},
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		if remoteErr != nil {
			return nil, remoteErr
		}
		o.primary = remote
		if localErr == nil {
			o.fallback = local
		} else {
			log.Warnf("local fallback backend unavailable: %v", localErr)
		}
	case config.ProviderLocal:
		if localErr != nil {
			return nil, localErr
		}
		o.primary = local
		if remoteErr == nil {
			o.fallback = remote
		} else if cfg.EnableFallback {
			log.Warnf("Gemini fallback backend unavailable: %v", remoteErr)
		}
	default:
		return nil, errs.Validation("unknown AI provider", map[string]any{
			"operation": "orchestrator construction",
			"provider":  cfg.Provider,
		})
	}

	for _, modelID := range cfg.ReviewModels {
		backend, err := buildReviewBackend(ctx, cfg, modelID)
		if err != nil {
			log.Warnf("skipping review model %q: %v", modelID, err)
			continue
		}
		o.sequence = append(o.sequence, backend)
	}

	return o, nil
}

// buildReviewBackend binds a review model identifier to a backend kind.
// Identifiers containing "gemini" go to the remote API; everything else is
// assumed to be a local Ollama model.
func buildReviewBackend(ctx context.Context, cfg *config.Config, modelID string) (provider.Backend, error) {
	if strings.Contains(strings.ToLower(modelID), "gemini") {
		return gemini.New(ctx, cfg.GeminiAPIKey, modelID, cfg.ModelParameters)
	}
	return ollama.New(modelID, cfg.OllamaBaseURL, cfg.AnalysisTimeout, cfg.ModelParameters)
}

// NewWithBackends wires an orchestrator directly from backend instances.
func NewWithBackends(primary, fallback provider.Backend, sequence []provider.Backend, opts Options) *Orchestrator {
	return &Orchestrator{primary: primary, fallback: fallback, sequence: sequence, opts: opts}
}

// Analyze produces chapters and notes for the transcript: primary backend
// first, fallback on primary failure when enabled, then the review protocol
// when configured.
func (o *Orchestrator) Analyze(ctx context.Context, t *transcript.Transcript, save provider.SaveOptions) (*provider.Result, error) {
	if t == nil || len(t.Segments) == 0 {
		return nil, errs.Validation("transcript has no segments to analyze", map[string]any{
			"operation": "analysis",
		})
	}

	result, err := o.analyzeWithFallback(ctx, t, save)
	if err != nil {
		return nil, err
	}

	if o.opts.EnableReview && o.opts.ReviewPasses > 1 {
		result = o.runReviewPasses(ctx, t, result, save)
	}
	return result, nil
}

func (o *Orchestrator) analyzeWithFallback(ctx context.Context, t *transcript.Transcript, save provider.SaveOptions) (*provider.Result, error) {
	log := logging.NewLogger(ctx)

	var primaryErr error
	primaryName := backendName(ctx, o.primary)

	if o.primary != nil && o.primary.IsAvailable(ctx) {
		result, err := o.primary.Analyze(ctx, t, save)
		if err == nil {
			return result, nil
		}
		primaryErr = err
		log.Warnf("primary backend %s failed: %v", primaryName, err)
	} else {
		primaryErr = errs.Dependency("primary backend is unavailable", map[string]any{
			"provider": primaryName,
		})
		log.Warnf("primary backend %s is unavailable", primaryName)
	}

	if !o.opts.EnableFallback {
		kind := errs.KindOf(primaryErr)
		if kind != errs.KindProcessing {
			kind = errs.KindDependency
		}
		return nil, errs.Wrap(kind, "analysis failed and fallback is disabled", map[string]any{
			"provider":   primaryName,
			"operation":  "analysis",
			"suggestion": "set ENABLE_FALLBACK=true or fix the primary backend",
		}, primaryErr)
	}

	fallbackName := backendName(ctx, o.fallback)
	if o.fallback == nil || !o.fallback.IsAvailable(ctx) {
		return nil, errs.Wrap(errs.KindDependency, "no AI backend available for analysis", map[string]any{
			"operation":         "analysis",
			"primary_provider":  primaryName + " (unavailable)",
			"fallback_provider": fallbackName + " (unavailable)",
			"suggestion":        "start the local model service or configure a working API key",
		}, primaryErr)
	}

	log.Infof("falling back from %s to %s", primaryName, fallbackName)
	result, err := o.fallback.Analyze(ctx, t, save)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "both primary and fallback backends failed", map[string]any{
			"operation":         "analysis",
			"primary_provider":  primaryName,
			"fallback_provider": fallbackName,
			"primary_cause":     primaryErr.Error(),
		}, err)
	}
	return result, nil
}

// backendName resolves a display name without requiring a non-nil backend.
func backendName(ctx context.Context, b provider.Backend) string {
	if b == nil {
		return "none"
	}
	return b.Info(ctx).Name
}
