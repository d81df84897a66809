// Package timeout provides per-request deadline middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
)

// Middleware gives each request its own deadline. A non-positive duration disables it.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if duration <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
