package orchestrator

import (
	"context"
	"fmt"

	"github.com/chaptermark/chaptermark/pkg/logging"
	"github.com/chaptermark/chaptermark/pkg/provider"
)

// ValidateConfiguration audits every configured backend and returns one
// human-readable issue per structurally-present-but-unavailable backend.
// Pure diagnostic; never errors and never mutates state.
func (o *Orchestrator) ValidateConfiguration(ctx context.Context) []string {
	var issues []string

	if o.primary == nil {
		issues = append(issues, "no primary backend is configured")
	} else if info := o.primary.Info(ctx); !info.Available {
		issues = append(issues, fmt.Sprintf("primary backend %s (%s) is not available", info.Name, info.Model))
	}

	if o.opts.EnableFallback {
		if o.fallback == nil {
			issues = append(issues, "fallback is enabled but no fallback backend is configured")
		} else if info := o.fallback.Info(ctx); !info.Available {
			issues = append(issues, fmt.Sprintf("fallback backend %s (%s) is not available", info.Name, info.Model))
		}
	}

	for i, backend := range o.sequence {
		if info := backend.Info(ctx); !info.Available {
			issues = append(issues, fmt.Sprintf("review model %d (%s via %s) is not available", i+1, info.Model, info.Name))
		}
	}

	return issues
}

// Backends returns metadata for every configured backend, primary first.
func (o *Orchestrator) Backends(ctx context.Context) []provider.Info {
	var infos []provider.Info
	if o.primary != nil {
		infos = append(infos, o.primary.Info(ctx))
	}
	if o.fallback != nil {
		infos = append(infos, o.fallback.Info(ctx))
	}
	for _, backend := range o.sequence {
		infos = append(infos, backend.Info(ctx))
	}
	return infos
}

// ReportStatus logs the current backend availability picture.
func (o *Orchestrator) ReportStatus(ctx context.Context) {
	log := logging.NewLogger(ctx)

	for _, info := range o.Backends(ctx) {
		state := "unavailable"
		if info.Available {
			state = "available"
		}
		log.Infof("backend=%s kind=%s model=%q status=%s", info.Name, info.Kind, info.Model, state)
	}

	for _, issue := range o.ValidateConfiguration(ctx) {
		log.Warnf("configuration issue: %s", issue)
	}
}
