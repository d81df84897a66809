// Package coingecko looks up market data from the CoinGecko simple price API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ntclick/ai-research-roma/pkg/capability"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

const serviceName = "CoinGecko"

//nolint:gochecknoglobals // read-only
var (
	validID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

	knownSymbols = map[string]string{
		"bitcoin": "BTC", "ethereum": "ETH", "solana": "SOL", "cardano": "ADA",
		"polkadot": "DOT", "chainlink": "LINK", "matic-network": "MATIC", "avalanche-2": "AVAX",
		"arbitrum": "ARB", "optimism": "OP", "cosmos": "ATOM", "near": "NEAR",
		"algorand": "ALGO", "fantom": "FTM", "injective-protocol": "INJ", "sei-network": "SEI",
		"sui": "SUI", "aptos": "APT", "ripple": "XRP", "dogecoin": "DOGE", "shiba-inu": "SHIB",
		"pepe": "PEPE", "uniswap": "UNI", "pancakeswap-token": "CAKE", "aave": "AAVE",
		"maker": "MKR", "render-token": "RNDR", "fetch-ai": "FET", "the-sandbox": "SAND",
		"axie-infinity": "AXS", "tether": "USDT", "usd-coin": "USDC", "dai": "DAI",
	}
)

// ErrNotFound is returned for ids CoinGecko does not know.
var ErrNotFound = errors.New("coin not found")

// Client queries /api/v3/simple/price.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. An empty apiKey omits the demo key header.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    capability.NewHTTPClient(timeout),
	}
}

// LookupPrice implements roma.PriceSource.
func (c *Client) LookupPrice(ctx context.Context, id string) (roma.PriceQuote, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !validID.MatchString(id) {
		return roma.PriceQuote{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/simple/price?"+q.Encode(), nil)
	if err != nil {
		return roma.PriceQuote{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return roma.PriceQuote{}, fmt.Errorf("%s request failed: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if err := capability.CheckResponse(serviceName, resp); err != nil {
		return roma.PriceQuote{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return roma.PriceQuote{}, fmt.Errorf("failed to read %s response: %w", serviceName, err)
	}
	if !gjson.ValidBytes(body) {
		return roma.PriceQuote{}, fmt.Errorf("%s returned invalid JSON", serviceName)
	}

	coin := gjson.GetBytes(body, id)
	if !coin.Exists() || !coin.Get("usd").Exists() {
		return roma.PriceQuote{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return roma.PriceQuote{
		ID:        id,
		Name:      DisplayName(id),
		Symbol:    Symbol(id),
		Price:     coin.Get("usd").Float(),
		MarketCap: coin.Get("usd_market_cap").Float(),
		Volume:    coin.Get("usd_24h_vol").Float(),
		Change24h: coin.Get("usd_24h_change").Float(),
	}, nil
}

// DisplayName turns "matic-network" into "Matic Network".
func DisplayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Symbol returns the ticker for a known id, or the upper-cased id.
func Symbol(id string) string {
	if s, ok := knownSymbols[id]; ok {
		return s
	}
	return strings.ToUpper(id)
}
