package roma

import (
	"context"
	"errors"
	"fmt"
)

// IntentClassifier picks the capability for a query.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (RoutingDecision, error)
}

// IdentifierExtractor resolves free text to a canonical asset identifier.
type IdentifierExtractor interface {
	ExtractIdentifier(ctx context.Context, query string) (Identifier, error)
}

// PriceSource looks up market data for an identifier.
type PriceSource interface {
	LookupPrice(ctx context.Context, id string) (PriceQuote, error)
}

// Reasoner answers a prompt with generated text.
type Reasoner interface {
	Reason(ctx context.Context, prompt Prompt) (string, error)
}

// NewsSource returns rendered news for a query. An empty string means nothing matched.
type NewsSource interface {
	LookupNews(ctx context.Context, query string) (string, error)
}

// ImageGenerator renders an image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

// SocialAnalyzer analyzes a social-media post by URL.
type SocialAnalyzer interface {
	AnalyzePost(ctx context.Context, url string) (string, error)
}

// Synthesizer merges a combined artifact into one answer for the original query.
type Synthesizer interface {
	Synthesize(ctx context.Context, combined, query string) (string, error)
}

// Decomposer splits a query into ordered sub-queries.
type Decomposer interface {
	Decompose(ctx context.Context, query string) ([]PlannedStep, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, prompt Prompt) (string, error)

// Reason calls f.
func (f ReasonerFunc) Reason(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// NamedReasoner pairs a reasoner with the name reported as the answer's source.
type NamedReasoner struct {
	Name     string
	Reasoner Reasoner
}

// FallbackReasoner tries reasoners in order and returns the first success.
// Each reasoner is attempted once with the identical prompt.
type FallbackReasoner struct {
	chain []NamedReasoner
}

// NewFallbackReasoner builds a chain. Nil reasoners are skipped.
func NewFallbackReasoner(reasoners ...NamedReasoner) *FallbackReasoner {
	chain := make([]NamedReasoner, 0, len(reasoners))
	for _, r := range reasoners {
		if r.Reasoner != nil {
			chain = append(chain, r)
		}
	}
	return &FallbackReasoner{chain: chain}
}

// Len returns the number of reasoners in the chain.
func (f *FallbackReasoner) Len() int {
	return len(f.chain)
}

// Reason implements Reasoner.
func (f *FallbackReasoner) Reason(ctx context.Context, prompt Prompt) (string, error) {
	text, _, err := f.ReasonWithSource(ctx, prompt)
	return text, err
}

// ReasonWithSource returns the answer and the name of the reasoner that produced it.
// When every reasoner fails the returned error joins all failures.
func (f *FallbackReasoner) ReasonWithSource(ctx context.Context, prompt Prompt) (string, string, error) {
	if len(f.chain) == 0 {
		return "", "", errors.New("no reasoners configured")
	}

	var errs []error
	for _, r := range f.chain {
		text, err := r.Reasoner.Reason(ctx, prompt)
		if err == nil {
			return text, r.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
	}
	return "", "", fmt.Errorf("all reasoners failed: %w", errors.Join(errs...))
}

// Observer receives engine events. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveResolution(mode ResolutionMode, ok bool, seconds float64)
	ObserveCapabilityCall(capability Capability, ok bool)
}

// ResolutionMode describes how the Resolver handled a task.
type ResolutionMode string

const (
	ModeAtomic     ResolutionMode = "atomic"
	ModeDecomposed ResolutionMode = "decomposed"
	ModeForced     ResolutionMode = "forced"
)

type nopObserver struct{}

func (nopObserver) ObserveResolution(ResolutionMode, bool, float64) {}
func (nopObserver) ObserveCapabilityCall(Capability, bool)          {}
