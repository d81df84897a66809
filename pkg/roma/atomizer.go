package roma

import (
	"context"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// Atomizer decides whether a task can be executed directly.
type Atomizer struct {
	complex Lexicon
	simple  Lexicon
}

// NewAtomizer creates an atomizer over the given lexicons.
func NewAtomizer(complexMarkers, simpleMarkers Lexicon) *Atomizer {
	return &Atomizer{complex: complexMarkers, simple: simpleMarkers}
}

// IsAtomic applies the rules in order: a complex marker means decompose,
// a simple marker means atomic, and anything else defaults to atomic.
func (a *Atomizer) IsAtomic(ctx context.Context, task Task) bool {
	if m, ok := a.complex.Match(task.Query); ok {
		logx.Debug(ctx, "atomizer", "complex marker %q: decomposing %q", m, task.Query)
		return false
	}
	if m, ok := a.simple.Match(task.Query); ok {
		logx.Debug(ctx, "atomizer", "simple marker %q: atomic %q", m, task.Query)
		return true
	}
	logx.Debug(ctx, "atomizer", "no marker: atomic by default %q", task.Query)
	return true
}
