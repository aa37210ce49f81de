// Package classifier wraps the optional external intent classifier. The core
// must function correctly with this collaborator entirely absent: every call
// site treats an error or empty result as "fall back to patterns", and the
// absent implementation is the default.
package classifier

import (
	"context"
	"errors"

	"solari/internal/types"
)

// ErrUnavailable reports that no external classifier is configured or
// reachable. Callers absorb it and use the deterministic pattern path.
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier is the external large-model fallback. Implementations must be
// safe for concurrent use and must bound their own I/O with the caller's
// context plus their configured timeout.
type Classifier interface {
	// Available reports whether the classifier can be consulted at all.
	// A false return short-circuits without any I/O.
	Available() bool

	// DetectIntent classifies free text into ranked intent candidates.
	DetectIntent(ctx context.Context, text string, snap *types.Snapshot) ([]types.Intent, error)

	// ExtractEntities resolves entities for a chosen intent.
	ExtractEntities(ctx context.Context, intent types.Intent, text string, snap *types.Snapshot) (types.ExtractionResult, error)

	// Explain produces a human-readable explanation of an operation result.
	Explain(ctx context.Context, operation string, snap *types.Snapshot, result any) (string, error)
}

// Absent is the no-classifier implementation. Core logic is written and
// tested against this first, so the fallback path is always exercised.
type Absent struct{}

// Available always reports false.
func (Absent) Available() bool { return false }

// DetectIntent always reports unavailability.
func (Absent) DetectIntent(context.Context, string, *types.Snapshot) ([]types.Intent, error) {
	return nil, ErrUnavailable
}

// ExtractEntities always reports unavailability.
func (Absent) ExtractEntities(context.Context, types.Intent, string, *types.Snapshot) (types.ExtractionResult, error) {
	return types.ExtractionResult{}, ErrUnavailable
}

// Explain always reports unavailability.
func (Absent) Explain(context.Context, string, *types.Snapshot, any) (string, error) {
	return "", ErrUnavailable
}
