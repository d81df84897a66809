package roma

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// ErrNoClassifier is returned by a router without a classifier.
var ErrNoClassifier = errors.New("no intent classifier configured")

// Router selects exactly one capability for a query.
type Router struct {
	classifier IntentClassifier
}

// NewRouter creates a router over an intent classifier.
func NewRouter(classifier IntentClassifier) *Router {
	return &Router{classifier: classifier}
}

// Route classifies query and validates the decision. It never guesses: a failed
// or unusable classification is returned as an error.
func (r *Router) Route(ctx context.Context, query string) (RoutingDecision, error) {
	if r.classifier == nil {
		return RoutingDecision{}, ErrNoClassifier
	}

	decision, err := r.classifier.Classify(ctx, query)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("intent classification failed: %w", err)
	}

	decision.Capability = Capability(strings.ToLower(strings.TrimSpace(string(decision.Capability))))
	if !decision.Capability.IsRoutable() {
		return RoutingDecision{}, fmt.Errorf("classifier selected unknown capability %q", decision.Capability)
	}

	switch {
	case decision.Confidence < 0:
		decision.Confidence = 0
	case decision.Confidence > 1:
		decision.Confidence = 1
	}

	if decision.Capability == CapabilityAskUser {
		if strings.TrimSpace(decision.Clarification) == "" {
			decision.Clarification = DefaultClarification
		}
	} else {
		decision.Clarification = ""
	}

	logx.Debug(ctx, "router", "routed to %s (confidence %.2f): %s",
		decision.Capability, decision.Confidence, decision.Reason)
	return decision, nil
}
