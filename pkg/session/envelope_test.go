package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ntclick/ai-research-roma/pkg/roma"
)

func TestBuildEnvelopeExecution(t *testing.T) {
	img := roma.Succeeded(roma.CapabilityImageGenerate, roma.Payload{
		Content: "🎨 **Image Generated!**", ImageURL: "https://fal.media/a.jpg", Source: roma.SourceImage,
	})
	env := BuildEnvelope(roma.Outcome{Execution: &img}, "req-1")

	assert.Equal(t, Envelope{
		Type:      TypeResearchResponse,
		Tool:      ToolResearch,
		Content:   "🎨 **Image Generated!**",
		Sender:    "ai",
		APISource: roma.SourceImage,
		ImageURL:  "https://fal.media/a.jpg",
		RequestID: "req-1",
	}, env)

	clarify := roma.Succeeded(roma.CapabilityAskUser, roma.Payload{Content: "Which coin?", Source: roma.SourceClarification})
	clarify.NeedsInput = true
	env = BuildEnvelope(roma.Outcome{Execution: &clarify}, "req-2")
	assert.True(t, env.NeedsInput)
	assert.False(t, env.HasError)
}

func TestBuildEnvelopeFailures(t *testing.T) {
	tests := []struct {
		kind  roma.ErrorKind
		retry bool
	}{
		{roma.ErrorKindProvider, true},
		{roma.ErrorKindRouting, true},
		{roma.ErrorKindInternal, true},
		{roma.ErrorKindExtraction, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			r := roma.Failed(roma.CapabilityPriceLookup, tt.kind, "boom")
			env := BuildEnvelope(roma.Outcome{Execution: &r}, "req")
			assert.Equal(t, TypeError, env.Type)
			assert.True(t, env.HasError)
			assert.Equal(t, tt.retry, env.RetryAvailable)
			assert.Contains(t, env.Content, "boom")
		})
	}

	permanent := roma.Failed(roma.CapabilityImageGenerate, roma.ErrorKindProvider, "fal error: HTTP 401")
	permanent.Error.Permanent = true
	env := BuildEnvelope(roma.Outcome{Execution: &permanent}, "req")
	assert.False(t, env.RetryAvailable)
	assert.NotContains(t, env.Content, "Retry available")

	env = BuildEnvelope(roma.Outcome{}, "req")
	assert.Equal(t, TypeError, env.Type)
}

func TestBuildEnvelopeAggregation(t *testing.T) {
	price := roma.Succeeded(roma.CapabilityPriceLookup, roma.Payload{Content: "SOL $150", Structured: map[string]any{"id": "solana"}})
	agg := roma.AggregationResult{
		OK:           true,
		Content:      "[COMPREHENSIVE ANALYSIS] q\n\nSOL $150\n\n" + roma.SynthesisHeader + "\nSolana looks strong.",
		SubtaskCount: 2,
		Subresults:   []roma.ExecutionResult{price},
	}

	env := BuildEnvelope(roma.Outcome{Aggregation: &agg}, "req")
	assert.Equal(t, "Solana looks strong.", env.Content)
	assert.Equal(t, 2, env.SubtaskCount)
	assert.Equal(t, roma.SourceAggregated, env.APISource)
	assert.Equal(t, "solana", CoinOf(roma.Outcome{Aggregation: &agg}))

	agg.Content = "[COMPREHENSIVE ANALYSIS] q\n\nSOL $150"
	env = BuildEnvelope(roma.Outcome{Aggregation: &agg}, "req")
	assert.Equal(t, agg.Content, env.Content)
}

func TestCoinOf(t *testing.T) {
	text := roma.Succeeded(roma.CapabilityTextAnswer, roma.Payload{Content: "x"})
	assert.Empty(t, CoinOf(roma.Outcome{Execution: &text}))

	text.Identifier = "cardano"
	assert.Equal(t, "cardano", CoinOf(roma.Outcome{Execution: &text}))

	failed := roma.Failed(roma.CapabilityPriceLookup, roma.ErrorKindProvider, "x")
	failed.Identifier = "bitcoin"
	assert.Empty(t, CoinOf(roma.Outcome{Execution: &failed}))

	price := roma.Succeeded(roma.CapabilityPriceLookup, roma.Payload{Structured: map[string]any{"id": "solana"}})
	price.Identifier = "sol"
	assert.Equal(t, "solana", CoinOf(roma.Outcome{Execution: &price}))

	// A non-string id falls back to the extracted identifier.
	price.Payload.Structured["id"] = 42
	assert.Equal(t, "sol", CoinOf(roma.Outcome{Execution: &price}))
}
