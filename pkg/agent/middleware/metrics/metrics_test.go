package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/circuit"
)

type captureRecorder struct {
	requests []Request
}

func (c *captureRecorder) ObserveRequest(r Request) {
	c.requests = append(c.requests, r)
}

func stubClient(resp llm.CompletionResponse, err error) llm.LLMClient {
	return llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			return resp, err
		},
		func() string { return "gpt-4.1-mini" },
	)
}

func TestMiddlewareRecordsSuccess(t *testing.T) {
	rec := &captureRecorder{}
	client := Middleware(rec, nil, nil)(stubClient(llm.CompletionResponse{
		Content: "answer", PromptTokens: 1000, CompletionTokens: 500,
	}, nil))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("q")})
	req.Stage = "answer"
	_, err := client.Complete(WithSession(context.Background(), "s-1"), req)
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	got := rec.requests[0]
	assert.Equal(t, "gpt-4.1-mini", got.Model)
	assert.Equal(t, "answer", got.Stage)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, 1000, got.PromptTokens)
	assert.Equal(t, 500, got.CompletionTokens)
	assert.Greater(t, got.Cost, 0.0)
	assert.True(t, got.Success)
}

func TestMiddlewareRecordsErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&circuit.Error{State: circuit.Open}, "circuit_breaker"},
		{context.DeadlineExceeded, "timeout"},
		{llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "x"), "rate_limit"},
		{errors.New("plain"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := &captureRecorder{}
			client := Middleware(rec, nil, nil)(stubClient(llm.CompletionResponse{}, tt.err))

			_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
			require.Error(t, err)
			require.Len(t, rec.requests, 1)
			assert.Equal(t, tt.want, rec.requests[0].ErrorType)
			assert.False(t, rec.requests[0].Success)
		})
	}
}

func TestDefaultUsageExtractorCounts(t *testing.T) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("what is bitcoin")})
	prompt, completion := DefaultUsageExtractor(req, llm.CompletionResponse{Content: "Bitcoin is a cryptocurrency."})
	assert.Greater(t, prompt, 0)
	assert.Greater(t, completion, 0)
}

func TestInternalRecorder(t *testing.T) {
	rec := NewInternalRecorder()
	rec.ObserveRequest(Request{SessionID: "a", PromptTokens: 10, CompletionTokens: 5, Cost: 0.01, Success: true})
	rec.ObserveRequest(Request{SessionID: "a", Success: false})
	rec.ObserveRequest(Request{PromptTokens: 99, Success: true})

	usage := rec.GetSessionUsage("a")
	require.NotNil(t, usage)
	assert.EqualValues(t, 15, usage.TotalTokens)
	assert.EqualValues(t, 2, usage.RequestCount)
	assert.EqualValues(t, 1, usage.ErrorCount)
	assert.InDelta(t, 0.01, usage.TotalCost, 1e-9)
	assert.Nil(t, rec.GetSessionUsage("missing"))

	rec.Reset()
	assert.Nil(t, rec.GetSessionUsage("a"))
}

func TestPrometheusRecorderAndMulti(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := NewPrometheusRecorder(reg)
	internal := NewInternalRecorder()
	rec := Multi(prom, internal, Nop())

	rec.ObserveRequest(Request{
		Model: "gemini-2.5-flash", Stage: "route", SessionID: "s",
		PromptTokens: 7, CompletionTokens: 3, Success: true, Duration: time.Millisecond,
	})

	assert.InDelta(t, 1, testutil.ToFloat64(prom.requestsTotal.WithLabelValues("gemini-2.5-flash", "route", "s", "success", "")), 1e-9)
	assert.InDelta(t, 7, testutil.ToFloat64(prom.tokensTotal.WithLabelValues("gemini-2.5-flash", "route", "s", "prompt")), 1e-9)
	assert.EqualValues(t, 10, internal.GetSessionUsage("s").TotalTokens)
}
