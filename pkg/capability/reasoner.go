// Package capability implements the engine's capability providers: LLM-backed
// reasoning, routing, extraction, planning and synthesis, plus the HTTP
// clients under its subpackages.
package capability

import (
	"context"
	"errors"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// LLMReasoner answers prompts with an LLM client.
type LLMReasoner struct {
	client llm.LLMClient
}

// NewLLMReasoner wraps client. The client is expected to carry its own middleware chain.
func NewLLMReasoner(client llm.LLMClient) *LLMReasoner {
	return &LLMReasoner{client: client}
}

// Name returns the backing model name.
func (r *LLMReasoner) Name() string {
	return r.client.GetModelName()
}

// Reason implements roma.Reasoner.
func (r *LLMReasoner) Reason(ctx context.Context, prompt roma.Prompt) (string, error) {
	if strings.TrimSpace(prompt.User) == "" {
		return "", errors.New("empty prompt")
	}

	messages := make([]llm.CompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, llm.NewSystemMessage(prompt.System))
	}
	messages = append(messages, llm.NewUserMessage(prompt.User))

	req := llm.NewCompletionRequest(messages)
	if prompt.MaxTokens > 0 {
		req.MaxTokens = prompt.MaxTokens
	}
	if prompt.Temperature > 0 {
		req.Temperature = prompt.Temperature
	}
	req.Stage = prompt.Stage

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return "", err //nolint:wrapcheck // already classified by the middleware chain
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, r.Name()+" returned an empty response")
	}
	return content, nil
}
