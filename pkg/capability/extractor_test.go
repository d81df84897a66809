package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntclick/ai-research-roma/pkg/roma"
)

func TestLLMExtractor(t *testing.T) {
	r := &scriptedReasoner{out: `{"coin_id": " Bitcoin ", "confidence": 0.95}`}
	id, err := NewLLMExtractor(r).ExtractIdentifier(context.Background(), "how much is btc")
	require.NoError(t, err)
	assert.Equal(t, roma.Identifier{ID: "bitcoin", Confidence: 0.95}, id)

	_, err = NewLLMExtractor(&scriptedReasoner{out: `{"coin_id": ""}`}).ExtractIdentifier(context.Background(), "q")
	assert.Error(t, err)

	_, err = NewLLMExtractor(&scriptedReasoner{err: errors.New("down")}).ExtractIdentifier(context.Background(), "q")
	assert.Error(t, err)
}

func TestAliasExtractor(t *testing.T) {
	tests := []struct {
		query      string
		id         string
		confidence float64
	}{
		{"btc price", "bitcoin", 0.9},
		{"giá eth", "ethereum", 0.9},
		{"What is the current price of SOL?", "solana", 0.9},
		{"price of shiba inu", "shiba-inu", 0.9},
		{"its price (context: referring to bitcoin)", "bitcoin", 0.9},
		{"its price (context: referring to pepe-classic)", "pepe-classic", 0.6},
		{"kaspa price", "kaspa", 0.4},
	}

	e := NewAliasExtractor(nil)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			id, err := e.ExtractIdentifier(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.id, id.ID)
			assert.InDelta(t, tt.confidence, id.Confidence, 1e-9)
		})
	}

	_, err := e.ExtractIdentifier(context.Background(), "price of the coin")
	assert.Error(t, err)
}

func TestAliasExtractorPhrases(t *testing.T) {
	e := NewAliasExtractor(map[string]string{
		"newton":         "newton-project",
		"on base":        "base-protocol",
		"newton on base": "newton-on-base",
		"eth":            "ethereum",
	})
	require.Len(t, e.phrases, 2)
	assert.Equal(t, "newton on base", e.phrases[0].alias)

	tests := map[string]string{
		"newton on base price":   "newton-on-base",
		"what is on base?":       "base-protocol",
		"newton price":           "newton-project",
		"moon base price of eth": "ethereum",
	}
	for query, want := range tests {
		id, err := e.ExtractIdentifier(context.Background(), query)
		require.NoError(t, err, query)
		assert.Equal(t, want, id.ID, query)
	}
}

func TestExtractorChain(t *testing.T) {
	ctx := context.Background()

	failing := &stubExtractor{err: errors.New("model down")}
	empty := &stubExtractor{}
	alias := &stubExtractor{id: roma.Identifier{ID: "ethereum", Confidence: 0.9}}

	id, err := NewExtractorChain(failing, nil, empty, alias).ExtractIdentifier(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", id.ID)
	assert.Equal(t, 1, empty.calls)

	_, err = NewExtractorChain(failing).ExtractIdentifier(ctx, "eth")
	assert.ErrorContains(t, err, "model down")

	_, err = NewExtractorChain(empty).ExtractIdentifier(ctx, "eth")
	assert.Error(t, err)
}
