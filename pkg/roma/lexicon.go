package roma

import (
	"regexp"
	"strings"
)

// Lexicon is an immutable set of lower-case markers matched as substrings.
type Lexicon struct {
	markers []string
}

// NewLexicon builds a lexicon. Markers are lower-cased; blanks are dropped.
func NewLexicon(markers ...string) Lexicon {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return Lexicon{markers: out}
}

// Match returns the first marker contained in text, case-insensitively.
func (l Lexicon) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range l.markers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}

// Markers returns a copy of the lexicon's markers.
func (l Lexicon) Markers() []string {
	return append([]string(nil), l.markers...)
}

// DefaultComplexLexicon holds comparative, causal, predictive and investment-advice markers.
func DefaultComplexLexicon() Lexicon {
	return NewLexicon(
		"should i", "worth", "buy",
		"why", "how", "analyze", "compare",
		"where", "which",
		"trend", "future", "predict", "forecast",
		"best coin", "top", "which coin",
	)
}

// DefaultSimpleLexicon holds direct factual markers.
func DefaultSimpleLexicon() Lexicon {
	return NewLexicon(
		"price", "gia", "giá", "check", "cost", "value",
		"news", "tin tuc", "tin tức",
	)
}

// RoutingRule maps a query pattern to a capability.
type RoutingRule struct {
	Capability Capability
	Pattern    *regexp.Regexp
	Reason     string
	Confidence float64
}

// DefaultClarification is returned when no rule resolves a query's intent.
const DefaultClarification = "Could you clarify what you need? For example: " +
	"\"bitcoin price\", \"ethereum news\", \"what is solana\" or \"create image of a bitcoin rocket in space\"."

// DefaultRoutingRules returns the keyword routing table in priority order.
// A query matching none of them should be answered with a clarification.
func DefaultRoutingRules() []RoutingRule {
	return []RoutingRule{
		{
			Capability: CapabilitySocialAnalyze,
			Pattern:    regexp.MustCompile(`(?i)(https?://)?(www\.)?(x|twitter)\.com/\S+|analy[sz]e (this )?tweet`),
			Reason:     "social media URL",
			Confidence: 0.95,
		},
		{
			Capability: CapabilityTextAnswer,
			Pattern:    regexp.MustCompile(`(?i)(what is|what are|what's|explain|là gì|la gi|giải thích|giai thich)`),
			Reason:     "definition or explanation",
			Confidence: 0.85,
		},
		{
			Capability: CapabilityPriceLookup,
			Pattern:    regexp.MustCompile(`(?i)(price|giá|\bgia\b|market cap|\bcost\b|\bvalue\b|\bvolume\b)`),
			Reason:     "price or market data",
			Confidence: 0.9,
		},
		{
			Capability: CapabilityNewsLookup,
			Pattern:    regexp.MustCompile(`(?i)(news|tin tức|tin tuc|\bupdates?\b|headlines?)`),
			Reason:     "news request",
			Confidence: 0.85,
		},
		{
			Capability: CapabilityImageGenerate,
			Pattern:    imagePhrase,
			Reason:     "image generation",
			Confidence: 0.85,
		},
	}
}

//nolint:gochecknoglobals // compiled once, read-only
var imagePhrase = regexp.MustCompile(
	`(?i)((create|generate|make|draw)\s+(an?\s+)?(image|picture|photo)s?(\s+of)?|tạo\s+hình(\s+ảnh)?|tao\s+hinh(\s+anh)?)`)

// MinImageWords is the shortest image description accepted without clarification.
const MinImageWords = 3

// ImageClarification asks the user for a fuller image description.
const ImageClarification = "Please describe the image in a few more words. For example:\n" +
	"- \"ETH coin with text 'to the moon'\"\n" +
	"- \"Bitcoin rocket in space\""

// ImageDescription strips the generation phrasing from a query and returns what remains.
func ImageDescription(query string) string {
	loc := imagePhrase.FindStringIndex(query)
	if loc == nil {
		return strings.TrimSpace(query)
	}
	return strings.Trim(query[loc[1]:], " \t\n:,-")
}
