package capability

import (
	"context"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// scriptedReasoner returns canned output and records prompts.
type scriptedReasoner struct {
	out     string
	err     error
	prompts []roma.Prompt
}

func (r *scriptedReasoner) Reason(_ context.Context, p roma.Prompt) (string, error) {
	r.prompts = append(r.prompts, p)
	return r.out, r.err
}

type stubClassifier struct {
	decision roma.RoutingDecision
	err      error
	calls    int
}

func (c *stubClassifier) Classify(context.Context, string) (roma.RoutingDecision, error) {
	c.calls++
	return c.decision, c.err
}

type stubExtractor struct {
	id    roma.Identifier
	err   error
	calls int
}

func (e *stubExtractor) ExtractIdentifier(context.Context, string) (roma.Identifier, error) {
	e.calls++
	return e.id, e.err
}

func recordingClient(content string, err error, seen *[]llm.CompletionRequest) llm.LLMClient {
	return llm.WrapClient(
		func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
			*seen = append(*seen, req)
			if err != nil {
				return llm.CompletionResponse{}, err
			}
			return llm.CompletionResponse{Content: content}, nil
		},
		func() string { return "test-model" },
	)
}
