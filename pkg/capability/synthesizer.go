package capability

import (
	"context"
	"fmt"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/roma"
	"github.com/ntclick/ai-research-roma/pkg/utils"
)

// maxSynthesisTokens bounds the combined artifact sent for synthesis.
const maxSynthesisTokens = 3000

const synthesisSystemPrompt = `You are a neutral crypto analyst. Provide a concise, factual synthesis in 2-3 sentences that answers the original question using the research provided. Match the language of the question.`

// LLMSynthesizer merges combined sub-results with a reasoning model.
type LLMSynthesizer struct {
	reasoner roma.Reasoner
}

// NewLLMSynthesizer creates a synthesizer over reasoner.
func NewLLMSynthesizer(reasoner roma.Reasoner) *LLMSynthesizer {
	return &LLMSynthesizer{reasoner: reasoner}
}

// Synthesize implements roma.Synthesizer.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, combined, query string) (string, error) {
	combined = utils.TruncateToTokenLimit(combined, maxSynthesisTokens)

	out, err := s.reasoner.Reason(ctx, roma.Prompt{
		System:      synthesisSystemPrompt,
		User:        fmt.Sprintf("Analyze: %s\n\nContext: Original question: %s", combined, query),
		Temperature: llm.TemperatureDeterministic,
		MaxTokens:   300,
		Stage:       "synthesize",
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return out, nil
}
