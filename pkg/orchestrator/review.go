package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/provider"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

// ReviewBackend selects the backend for a review pass. Review passes are
// numbered from 1, independent of the initial analysis pass.
//
// Selection is cyclic over the review sequence: pass k maps to
// sequence[(k-1) mod len]. When that member is unavailable, any other
// available sequence member is taken, then primary, then fallback. Exhaustion
// is a resolution error, which aborts the remaining passes.
func (o *Orchestrator) ReviewBackend(ctx context.Context, pass int) (provider.Backend, error) {
	if pass < 1 {
		return nil, errs.Validation("review pass number must be >= 1", map[string]any{
			"operation": "review backend selection",
			"pass":      pass,
		})
	}

	if len(o.sequence) == 0 {
		if o.primary != nil && o.primary.IsAvailable(ctx) {
			return o.primary, nil
		}
		if o.fallback != nil && o.fallback.IsAvailable(ctx) {
			return o.fallback, nil
		}
		return nil, errs.Resolution("no backend available for review pass", map[string]any{
			"operation": "review backend selection",
			"pass":      pass,
		})
	}

	index := (pass - 1) % len(o.sequence)
	if o.sequence[index].IsAvailable(ctx) {
		return o.sequence[index], nil
	}

	preferred := o.sequence[index].Info(ctx)
	available := make([]string, 0, len(o.sequence))
	for i, candidate := range o.sequence {
		if i == index {
			continue
		}
		if candidate.IsAvailable(ctx) {
			return candidate, nil
		}
	}
	for _, candidate := range o.sequence {
		if info := candidate.Info(ctx); info.Available {
			available = append(available, info.Model)
		}
	}

	if o.primary != nil && o.primary.IsAvailable(ctx) {
		return o.primary, nil
	}
	if o.fallback != nil && o.fallback.IsAvailable(ctx) {
		return o.fallback, nil
	}

	return nil, errs.Resolution("no backend available for review pass", map[string]any{
		"operation":         "review backend selection",
		"pass":              pass,
		"requested_model":   preferred.Model,
		"available_models":  strings.Join(available, ", "),
		"primary_provider":  availabilityLabel(ctx, o.primary),
		"fallback_provider": availabilityLabel(ctx, o.fallback),
	})
}

// runReviewPasses drives the sequential review protocol over the initial
// analysis result. Display pass numbers start at 2 because the analysis
// itself counts as pass 1.
//
// A failed or empty pass keeps the previous state and continues; a pass with
// no resolvable backend aborts all remaining passes. The method always
// returns a usable result.
func (o *Orchestrator) runReviewPasses(ctx context.Context, t *transcript.Transcript, initial *provider.Result, save provider.SaveOptions) *provider.Result {
	log := logging.NewLogger(ctx)
	current := initial

	for pass := 2; pass <= o.opts.ReviewPasses; pass++ {
		backend, err := o.ReviewBackend(ctx, pass-1)
		if err != nil {
			log.Warnf("review pass %d: %v; aborting remaining passes", pass, err)
			break
		}

		info := backend.Info(ctx)
		log.Infof("review pass %d/%d using %s (%s)", pass, o.opts.ReviewPasses, info.Name, info.Model)

		result, err := backend.Review(ctx, current, t, reviewSaveOptions(save, pass))
		if err != nil {
			log.Warnf("review pass %d failed, keeping previous result: %v", pass, err)
			continue
		}
		if result == nil || len(result.Chapters) == 0 {
			log.Warnf("review pass %d returned no chapters, keeping previous result", pass)
			continue
		}
		current = result
	}

	if current != initial {
		provider.SaveNotes(ctx, save.NotesPath, current.Notes)
	}
	return current
}

// reviewSaveOptions derives per-pass raw-response paths so later passes do
// not overwrite the initial analysis response. Notes are saved once, after
// the final pass.
func reviewSaveOptions(save provider.SaveOptions, pass int) provider.SaveOptions {
	if save.RawResponsePath == "" {
		return provider.SaveOptions{}
	}
	ext := filepath.Ext(save.RawResponsePath)
	base := strings.TrimSuffix(save.RawResponsePath, ext)
	return provider.SaveOptions{
		RawResponsePath: fmt.Sprintf("%s_review_pass_%d%s", base, pass, ext),
	}
}

func availabilityLabel(ctx context.Context, b provider.Backend) string {
	if b == nil {
		return "none"
	}
	info := b.Info(ctx)
	if info.Available {
		return info.Name + " (available)"
	}
	return info.Name + " (unavailable)"
}
