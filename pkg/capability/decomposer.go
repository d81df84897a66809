package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/ntclick/ai-research-roma/pkg/roma"
)

const planSystemPrompt = `You are a crypto research task planner. Break the query into 2-3 specific subtasks.

Available capabilities:
- price: price, market cap and volume for a specific coin
- analysis: deep research, explanations, recommendations
- news: latest crypto news

Rules:
1. Investment questions ("should I buy", "có nên mua"): price + exchange guidance + analysis
2. Location questions ("where to buy", "mua ở đâu"): price + exchange recommendations
3. Comparisons ("btc vs eth"): data for each coin + comparison analysis
4. Analytical questions ("why", "how"): supporting data + deep research

Each subtask must be answerable by a single capability and must not depend on another subtask.

Return ONLY a JSON array:
[{"query": "bitcoin price", "type": "price"}, {"query": "best bitcoin exchanges", "type": "analysis"}]`

// LLMDecomposer plans sub-queries with a reasoning model.
type LLMDecomposer struct {
	reasoner roma.Reasoner
}

// NewLLMDecomposer creates a decomposer over reasoner.
func NewLLMDecomposer(reasoner roma.Reasoner) *LLMDecomposer {
	return &LLMDecomposer{reasoner: reasoner}
}

// Decompose implements roma.Decomposer. Output that is not a JSON array of
// {query, type} records is an error.
func (d *LLMDecomposer) Decompose(ctx context.Context, query string) ([]roma.PlannedStep, error) {
	out, err := d.reasoner.Reason(ctx, roma.Prompt{
		System:      planSystemPrompt,
		User:        fmt.Sprintf("Query: %q", query),
		Temperature: 0.3,
		MaxTokens:   300,
		Stage:       "plan",
	})
	if err != nil {
		return nil, fmt.Errorf("planning model failed: %w", err)
	}

	doc, err := ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	if !doc.IsArray() {
		return nil, errors.New("planning response is not a JSON array")
	}

	var steps []roma.PlannedStep
	for _, item := range doc.Array() {
		if !item.IsObject() {
			continue
		}
		steps = append(steps, roma.PlannedStep{
			Query: item.Get("query").String(),
			Kind:  roma.TaskKind(item.Get("type").String()),
		})
	}
	if len(steps) == 0 {
		return nil, errors.New("planning response has no steps")
	}
	return steps, nil
}
