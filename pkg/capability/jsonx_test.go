package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		want  string
	}{
		{"bare object", `{"capability": "price_lookup"}`, "capability", "price_lookup"},
		{"fenced", "```json\n{\"capability\": \"news_lookup\"}\n```", "capability", "news_lookup"},
		{"prose around", `Sure! Here it is: {"coin_id": "bitcoin"} Hope that helps.`, "coin_id", "bitcoin"},
		{"array", `[{"query": "btc price", "type": "price"}]`, "0.query", "btc price"},
		{"array in prose", `Plan: [{"query": "eth news", "type": "news"}]`, "0.type", "news"},
		{"one-step array in prose", `Here is the plan: [{"query": "solana price", "type": "price"}]`, "#", "1"},
		{"object holding an array", `Result: {"steps": [1, 2]} done`, "steps.#", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Get(tt.key).String())
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, input := range []string{"", "no json here", `{"broken": `, `"just a string"`} {
		_, err := ExtractJSON(input)
		assert.ErrorIs(t, err, ErrNoJSON, input)
	}
}
