package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/circuit"
	"github.com/ntclick/ai-research-roma/pkg/config"
	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor returns token usage for a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers provider-reported usage and counts with tiktoken otherwise.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.PromptTokens > 0 || resp.CompletionTokens > 0 {
		return resp.PromptTokens, resp.CompletionTokens
	}

	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteString("\n")
	}
	return utils.CountTokensSimple(prompt.String()), utils.CountTokensSimple(resp.Content)
}

// Middleware records latency, token usage, cost and outcome for every request.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)

				observed := Request{
					Model:     model,
					Stage:     req.Stage,
					SessionID: SessionFrom(ctx),
					Success:   err == nil,
					Duration:  time.Since(start),
				}
				if err == nil {
					observed.PromptTokens, observed.CompletionTokens = usageExtractor(req, resp)
					observed.Cost = config.CalculateCost(model, observed.PromptTokens, observed.CompletionTokens)
				} else {
					observed.ErrorType = errorType(err)
				}
				recorder.ObserveRequest(observed)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Debug("LLM request: model=%s stage=%s tokens=%d+%d status=%s duration=%dms",
						model, req.Stage, observed.PromptTokens, observed.CompletionTokens, status, observed.Duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // pass through unchanged
			},
			next.GetModelName,
		)
	}
}

// errorType labels an error for metrics.
func errorType(err error) string {
	var circuitErr *circuit.Error
	switch {
	case errors.As(err, &circuitErr):
		return "circuit_breaker"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return llmerrors.TypeOf(err).String()
	}
}
