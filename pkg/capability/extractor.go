package capability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// DefaultCoinAliases maps tickers and common names to CoinGecko ids.
func DefaultCoinAliases() map[string]string {
	return map[string]string{
		"btc": "bitcoin", "bitcoin": "bitcoin",
		"eth": "ethereum", "ethereum": "ethereum",
		"sol": "solana", "solana": "solana",
		"ada": "cardano", "cardano": "cardano",
		"dot": "polkadot", "polkadot": "polkadot",
		"link": "chainlink", "chainlink": "chainlink",
		"matic": "matic-network", "polygon": "matic-network",
		"avax": "avalanche-2", "avalanche": "avalanche-2",
		"arb": "arbitrum", "arbitrum": "arbitrum",
		"op": "optimism", "optimism": "optimism",
		"atom": "cosmos", "cosmos": "cosmos",
		"near": "near",
		"algo": "algorand", "algorand": "algorand",
		"ftm": "fantom", "fantom": "fantom",
		"inj": "injective-protocol", "injective": "injective-protocol",
		"sei": "sei-network",
		"sui": "sui",
		"apt": "aptos", "aptos": "aptos",
		"mina": "mina-protocol",
		"celo": "celo",
		"xrp":  "ripple", "ripple": "ripple",
		"succinct": "succinct", "sp1": "succinct",
		"prove": "provenance-blockchain", "hash": "provenance-blockchain", "provenance": "provenance-blockchain",
		"newton protocol": "newton-protocol", "newt": "newton-protocol",
		"newton project": "newton-project",
		"newton on base": "newton-on-base",
		"ntn":            "newton",
		"pepe":           "pepe",
		"doge":           "dogecoin", "dogecoin": "dogecoin",
		"shib": "shiba-inu", "shiba": "shiba-inu",
		"bonk":  "bonk",
		"floki": "floki",
		"wojak": "wojak",
		"uni":   "uniswap", "uniswap": "uniswap",
		"cake": "pancakeswap-token", "pancakeswap": "pancakeswap-token",
		"aave": "aave",
		"comp": "compound-governance-token", "compound": "compound-governance-token",
		"crv": "curve-dao-token", "curve": "curve-dao-token",
		"mkr": "maker", "maker": "maker",
		"rndr": "render-token", "render": "render-token",
		"fet": "fetch-ai", "fetch": "fetch-ai",
		"sand": "the-sandbox", "sandbox": "the-sandbox",
		"axs": "axie-infinity", "axie": "axie-infinity",
		"usdt": "tether", "tether": "tether",
		"usdc": "usd-coin",
		"dai":  "dai",
	}
}

const extractSystemPrompt = `You are a cryptocurrency expert. Extract the coin from the user's query and map it to its CoinGecko coin id.

Return ONLY JSON:
{"coin_id": "coingecko-coin-id", "coin_name": "Full coin name", "confidence": 0.0-1.0}

Common mappings: btc=bitcoin, eth=ethereum, sol=solana, sui=sui, ada=cardano, dot=polkadot,
link=chainlink, arb=arbitrum, op=optimism, matic=matic-network, avax=avalanche-2.

If the query says "(context: referring to X)", the coin is X.
Use standard CoinGecko ids. If unsure, return confidence below 0.7.`

// LLMExtractor resolves coin identifiers with a reasoning model.
type LLMExtractor struct {
	reasoner roma.Reasoner
}

// NewLLMExtractor creates an extractor over reasoner.
func NewLLMExtractor(reasoner roma.Reasoner) *LLMExtractor {
	return &LLMExtractor{reasoner: reasoner}
}

// ExtractIdentifier implements roma.IdentifierExtractor.
func (e *LLMExtractor) ExtractIdentifier(ctx context.Context, query string) (roma.Identifier, error) {
	out, err := e.reasoner.Reason(ctx, roma.Prompt{
		System:      extractSystemPrompt,
		User:        "Query: " + query,
		Temperature: llm.TemperatureDeterministic,
		MaxTokens:   100,
		Stage:       "extract",
	})
	if err != nil {
		return roma.Identifier{}, fmt.Errorf("extraction model failed: %w", err)
	}

	doc, err := ExtractJSON(out)
	if err != nil {
		return roma.Identifier{}, err
	}
	id := strings.ToLower(strings.TrimSpace(doc.Get("coin_id").String()))
	if id == "" {
		return roma.Identifier{}, errors.New("extraction response has no coin_id")
	}

	confidence := 0.7
	if v := doc.Get("confidence"); v.Exists() {
		confidence = v.Float()
	}
	return roma.Identifier{ID: id, Confidence: confidence}, nil
}

//nolint:gochecknoglobals // compiled once
var (
	contextHint = regexp.MustCompile(`\(context: referring to ([^)]+)\)`)
	wordSplit   = regexp.MustCompile(`[^\p{L}\p{N}-]+`)
	fillerWords = map[string]bool{
		"giá": true, "gia": true, "price": true, "of": true, "the": true, "check": true,
		"what": true, "is": true, "s": true, "current": true, "now": true, "today": true,
		"market": true, "cap": true, "coin": true, "token": true, "value": true, "cost": true,
		"how": true, "much": true, "for": true, "me": true, "please": true,
	}
)

// AliasExtractor resolves identifiers from a fixed alias table.
type AliasExtractor struct {
	aliases map[string]string
	phrases []aliasPhrase
}

// aliasPhrase is a multi-word alias matched on word boundaries.
type aliasPhrase struct {
	alias   string
	pattern *regexp.Regexp
}

// NewAliasExtractor creates an extractor. Nil aliases means DefaultCoinAliases.
func NewAliasExtractor(aliases map[string]string) *AliasExtractor {
	if aliases == nil {
		aliases = DefaultCoinAliases()
	}
	var keys []string
	for k := range aliases {
		if strings.Contains(k, " ") {
			keys = append(keys, k)
		}
	}
	// Longest first so a phrase beats any shorter phrase inside it.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	phrases := make([]aliasPhrase, 0, len(keys))
	for _, k := range keys {
		phrases = append(phrases, aliasPhrase{alias: k, pattern: wordPattern(k)})
	}
	return &AliasExtractor{aliases: aliases, phrases: phrases}
}

// ExtractIdentifier implements roma.IdentifierExtractor. A context hint wins,
// then multi-word aliases, then single words. An unknown first word is passed
// through with low confidence.
func (e *AliasExtractor) ExtractIdentifier(_ context.Context, query string) (roma.Identifier, error) {
	lower := strings.ToLower(query)

	if m := contextHint.FindStringSubmatch(lower); m != nil {
		hint := strings.TrimSpace(m[1])
		if id, ok := e.aliases[hint]; ok {
			return roma.Identifier{ID: id, Confidence: 0.9}, nil
		}
		return roma.Identifier{ID: hint, Confidence: 0.6}, nil
	}

	for _, p := range e.phrases {
		if p.pattern.MatchString(lower) {
			return roma.Identifier{ID: e.aliases[p.alias], Confidence: 0.9}, nil
		}
	}

	var candidate string
	for _, w := range wordSplit.Split(lower, -1) {
		if w == "" || fillerWords[w] {
			continue
		}
		if id, ok := e.aliases[w]; ok {
			return roma.Identifier{ID: id, Confidence: 0.9}, nil
		}
		if candidate == "" {
			candidate = w
		}
	}

	if candidate == "" {
		return roma.Identifier{}, fmt.Errorf("no coin found in %q", query)
	}
	return roma.Identifier{ID: candidate, Confidence: 0.4}, nil
}

func wordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(phrase) + `($|[^\p{L}\p{N}])`)
}

// ExtractorChain tries extractors in order and returns the first identifier.
type ExtractorChain struct {
	extractors []roma.IdentifierExtractor
}

// NewExtractorChain creates a chain. Nil entries are skipped.
func NewExtractorChain(extractors ...roma.IdentifierExtractor) *ExtractorChain {
	chain := make([]roma.IdentifierExtractor, 0, len(extractors))
	for _, e := range extractors {
		if e != nil {
			chain = append(chain, e)
		}
	}
	return &ExtractorChain{extractors: chain}
}

// ExtractIdentifier implements roma.IdentifierExtractor.
func (c *ExtractorChain) ExtractIdentifier(ctx context.Context, query string) (roma.Identifier, error) {
	var errs []error
	for _, e := range c.extractors {
		id, err := e.ExtractIdentifier(ctx, query)
		if err == nil && id.ID != "" {
			return id, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return roma.Identifier{}, fmt.Errorf("no coin found in %q", query)
	}
	return roma.Identifier{}, errors.Join(errs...)
}
