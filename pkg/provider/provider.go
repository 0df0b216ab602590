// Package provider defines the capability interface every AI backend
// implements, plus the prompt building and response parsing shared by the
// concrete backends.
package provider

import (
	"context"

	"github.com/chaptermark/chaptermark/pkg/chapter"
	"github.com/chaptermark/chaptermark/pkg/transcript"
)

// Kind identifies where a backend runs.
type Kind string

const (
	// KindLocal is a backend served by a local inference service.
	KindLocal Kind = "local"

	// KindExternalAPI is a backend served by a remote hosted API.
	KindExternalAPI Kind = "external_api"
)

// Note is a loosely-typed actionable item extracted from a meeting. No
// downstream logic depends on its internal schema beyond non-emptiness and
// JSON serializability.
type Note map[string]any

// Result is the standardized output of an analysis or review call.
type Result struct {
	Chapters []chapter.Chapter
	Notes    []Note
}

// Info is pure backend metadata, except for the availability probe it embeds.
type Info struct {
	Name      string
	Kind      Kind
	Model     string
	Available bool
}

// SaveOptions names optional side-channel persistence targets. Empty paths
// disable the corresponding write.
type SaveOptions struct {
	RawResponsePath string
	NotesPath       string
}

// Backend is the capability interface over heterogeneous model integrations.
//
// IsAvailable performs a live probe on every call; availability is never
// cached because it can change between calls (service restart, model
// eviction). Analyze and Review are not idempotent and must not be retried
// blindly; retries are the orchestrator's explicit fallback logic.
type Backend interface {
	// IsAvailable reports whether the backend can currently be used. It is
	// side-effect free and never returns an error; internal failures
	// downgrade to false.
	IsAvailable(ctx context.Context) bool

	// Analyze identifies chapters and actionable notes in the transcript.
	Analyze(ctx context.Context, t *transcript.Transcript, save SaveOptions) (*Result, error)

	// Review augments a prior result with previously-missed chapters and
	// notes, never removing or altering existing correct content.
	Review(ctx context.Context, prior *Result, t *transcript.Transcript, save SaveOptions) (*Result, error)

	// Info returns backend metadata for logging and diagnostics.
	Info(ctx context.Context) Info
}
