package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// capabilityAliases maps provider-flavored labels a model may emit onto capabilities.
//
//nolint:gochecknoglobals // read-only lookup table
var capabilityAliases = map[string]roma.Capability{
	"coingecko":        roma.CapabilityPriceLookup,
	"price":            roma.CapabilityPriceLookup,
	"perplexity":       roma.CapabilityTextAnswer,
	"research":         roma.CapabilityTextAnswer,
	"rss_news":         roma.CapabilityNewsLookup,
	"news":             roma.CapabilityNewsLookup,
	"falai":            roma.CapabilityImageGenerate,
	"image":            roma.CapabilityImageGenerate,
	"twitter_analysis": roma.CapabilitySocialAnalyze,
	"social":           roma.CapabilitySocialAnalyze,
	"clarify":          roma.CapabilityAskUser,
}

func normalizeCapability(label string) roma.Capability {
	label = strings.ToLower(strings.TrimSpace(label))
	if c, ok := capabilityAliases[label]; ok {
		return c
	}
	return roma.Capability(label)
}

const routeSystemPrompt = `You are a routing expert for a crypto research assistant. Pick exactly one capability for the user's query.

Capabilities:
- social_analyze: X/Twitter post URLs ("x.com", "twitter.com", "analyze tweet")
- text_answer: questions, definitions, explanations ("what is", "explain", "là gì")
- price_lookup: specific price or market data ("btc price", "giá eth", "market cap")
- news_lookup: latest news ("news", "updates", "tin tức")
- image_generate: image generation ("create image", "generate image", "tạo hình")
- ask_user: vague queries whose intent cannot be resolved

Apply the rules in the order listed; the first that fits wins.

Return ONLY JSON:
{"capability": "<one of the above>", "reason": "<short reason>", "confidence": 0.0-1.0, "clarification": "<ask_user only, in English>"}

Examples:
- "https://x.com/user/status/123" -> {"capability": "social_analyze", "reason": "X/Twitter URL", "confidence": 0.95}
- "bitcoin price" -> {"capability": "price_lookup", "reason": "Price query", "confidence": 0.95}
- "coin là gì" -> {"capability": "text_answer", "reason": "Definition needed", "confidence": 0.9}
- "btc news" -> {"capability": "news_lookup", "reason": "Latest news", "confidence": 0.9}
- "create image btc" -> {"capability": "image_generate", "reason": "Image generation", "confidence": 0.9}`

// LLMClassifier routes queries with a reasoning model.
type LLMClassifier struct {
	reasoner roma.Reasoner
}

// NewLLMClassifier creates a classifier over reasoner.
func NewLLMClassifier(reasoner roma.Reasoner) *LLMClassifier {
	return &LLMClassifier{reasoner: reasoner}
}

// Classify implements roma.IntentClassifier.
func (c *LLMClassifier) Classify(ctx context.Context, query string) (roma.RoutingDecision, error) {
	out, err := c.reasoner.Reason(ctx, roma.Prompt{
		System:      routeSystemPrompt,
		User:        "Query: " + query,
		Temperature: llm.TemperatureDeterministic,
		MaxTokens:   150,
		Stage:       "route",
	})
	if err != nil {
		return roma.RoutingDecision{}, fmt.Errorf("routing model failed: %w", err)
	}

	doc, err := ExtractJSON(out)
	if err != nil || !doc.IsObject() {
		return roma.RoutingDecision{}, fmt.Errorf("invalid routing response %q: %w", truncateForError(out), ErrNoJSON)
	}

	label := doc.Get("capability").String()
	if label == "" {
		label = doc.Get("selected_api").String()
	}
	if label == "" {
		return roma.RoutingDecision{}, errors.New("routing response has no capability")
	}

	confidence := 0.7
	if v := doc.Get("confidence"); v.Exists() {
		confidence = v.Float()
	}

	return roma.RoutingDecision{
		Capability:    normalizeCapability(label),
		Confidence:    confidence,
		Reason:        doc.Get("reason").String(),
		Clarification: doc.Get("clarification").String(),
	}, nil
}

// KeywordClassifier routes with an ordered rule table and never fails.
type KeywordClassifier struct {
	rules []roma.RoutingRule
}

// NewKeywordClassifier creates a classifier. Nil rules means roma.DefaultRoutingRules.
func NewKeywordClassifier(rules []roma.RoutingRule) *KeywordClassifier {
	if rules == nil {
		rules = roma.DefaultRoutingRules()
	}
	return &KeywordClassifier{rules: rules}
}

// Classify implements roma.IntentClassifier.
func (c *KeywordClassifier) Classify(_ context.Context, query string) (roma.RoutingDecision, error) {
	for _, r := range c.rules {
		if r.Pattern.MatchString(query) {
			return roma.RoutingDecision{Capability: r.Capability, Confidence: r.Confidence, Reason: "keyword: " + r.Reason}, nil
		}
	}
	return roma.RoutingDecision{
		Capability:    roma.CapabilityAskUser,
		Confidence:    0.3,
		Reason:        "keyword: no rule matched",
		Clarification: roma.DefaultClarification,
	}, nil
}

// ClassifierChain tries classifiers in order and returns the first decision.
type ClassifierChain struct {
	classifiers []roma.IntentClassifier
}

// NewClassifierChain creates a chain. Nil entries are skipped.
func NewClassifierChain(classifiers ...roma.IntentClassifier) *ClassifierChain {
	chain := make([]roma.IntentClassifier, 0, len(classifiers))
	for _, c := range classifiers {
		if c != nil {
			chain = append(chain, c)
		}
	}
	return &ClassifierChain{classifiers: chain}
}

// Classify implements roma.IntentClassifier.
func (c *ClassifierChain) Classify(ctx context.Context, query string) (roma.RoutingDecision, error) {
	var errs []error
	for i, classifier := range c.classifiers {
		decision, err := classifier.Classify(ctx, query)
		if err == nil && normalizeCapability(string(decision.Capability)).IsRoutable() {
			if i > 0 {
				logx.Debug(ctx, "router", "classifier %d answered after %d failures", i, len(errs))
			}
			return decision, nil
		}
		if err == nil {
			err = fmt.Errorf("unroutable capability %q", decision.Capability)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return roma.RoutingDecision{}, errors.New("no classifiers configured")
	}
	return roma.RoutingDecision{}, errors.Join(errs...)
}

func truncateForError(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
