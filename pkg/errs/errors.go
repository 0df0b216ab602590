// Package errs defines the typed error taxonomy shared by the processing
// pipeline and the AI provider orchestration layer.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindValidation marks caller-supplied input that violates a
	// precondition. Never retried.
	KindValidation Kind = "validation"

	// KindDependency marks an external backend or tool that is unreachable,
	// unauthenticated, or rate-limited. Recoverable via fallback.
	KindDependency Kind = "dependency"

	// KindProcessing marks a backend that responded but whose output could
	// not be parsed into the expected contract.
	KindProcessing Kind = "processing"

	// KindResolution marks backend-resolution exhaustion: no backend at all
	// could service an operation.
	KindResolution Kind = "resolution"

	// KindFileSystem marks file system failures (missing inputs, permission
	// problems, write failures).
	KindFileSystem Kind = "filesystem"
)

// Error carries a kind, a human-readable message, structured context for
// diagnostics, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

// Context keys rendered first, in this order. Remaining keys are rendered
// alphabetically after them.
var leadingContextKeys = []string{"file_path", "dependency", "operation", "cause"}

func (e *Error) Error() string {
	lines := []string{fmt.Sprintf("Error: %s", e.Message)}

	rendered := make(map[string]bool, len(e.Context))
	for _, key := range leadingContextKeys {
		if value, ok := e.Context[key]; ok {
			lines = append(lines, formatContextLine(key, value))
			rendered[key] = true
		}
	}

	rest := make([]string, 0, len(e.Context))
	for key := range e.Context {
		if !rendered[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		lines = append(lines, formatContextLine(key, e.Context[key]))
	}

	return strings.Join(lines, "\n")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func formatContextLine(key string, value any) string {
	label := key
	switch key {
	case "file_path":
		label = "File"
	case "dependency":
		label = "Tool"
	default:
		words := strings.Split(key, "_")
		for i, word := range words {
			if word != "" {
				words[i] = strings.ToUpper(word[:1]) + word[1:]
			}
		}
		label = strings.Join(words, " ")
	}
	return fmt.Sprintf("  %s: %v", label, value)
}

// New builds an error of the given kind. Context may be nil.
func New(kind Kind, message string, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context}
}

// Wrap builds an error of the given kind around a cause. The cause is also
// recorded in the context under "cause" so it appears in the formatted
// message.
func Wrap(kind Kind, message string, context map[string]any, cause error) *Error {
	if cause != nil {
		if context == nil {
			context = map[string]any{}
		}
		if _, ok := context["cause"]; !ok {
			context["cause"] = cause.Error()
		}
	}
	return &Error{Kind: kind, Message: message, Context: context, Cause: cause}
}

func Validation(message string, context map[string]any) *Error {
	return New(KindValidation, message, context)
}

func Dependency(message string, context map[string]any) *Error {
	return New(KindDependency, message, context)
}

func Processing(message string, context map[string]any) *Error {
	return New(KindProcessing, message, context)
}

func Resolution(message string, context map[string]any) *Error {
	return New(KindResolution, message, context)
}

func FileSystem(message string, context map[string]any) *Error {
	return New(KindFileSystem, message, context)
}

// KindOf returns the kind of err if it is (or wraps) an *Error, and ""
// otherwise.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
