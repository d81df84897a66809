package roma

import (
	"context"
	"sync"
)

type mockClassifier struct {
	classifyFunc func(ctx context.Context, query string) (RoutingDecision, error)
	mu           sync.Mutex
	queries      []string
}

func (m *mockClassifier) Classify(ctx context.Context, query string) (RoutingDecision, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	return m.classifyFunc(ctx, query)
}

func routeTo(c Capability) *mockClassifier {
	return &mockClassifier{classifyFunc: func(context.Context, string) (RoutingDecision, error) {
		return RoutingDecision{Capability: c, Confidence: 0.9, Reason: "test"}, nil
	}}
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, query string) (Identifier, error)
}

func (m *mockExtractor) ExtractIdentifier(ctx context.Context, query string) (Identifier, error) {
	return m.extractFunc(ctx, query)
}

type mockPrices struct {
	lookupFunc func(ctx context.Context, id string) (PriceQuote, error)
}

func (m *mockPrices) LookupPrice(ctx context.Context, id string) (PriceQuote, error) {
	return m.lookupFunc(ctx, id)
}

type mockReasoner struct {
	reasonFunc func(ctx context.Context, prompt Prompt) (string, error)
	calls      int
	prompts    []Prompt
}

func (m *mockReasoner) Reason(ctx context.Context, prompt Prompt) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.reasonFunc(ctx, prompt)
}

type mockNews struct {
	newsFunc func(ctx context.Context, query string) (string, error)
}

func (m *mockNews) LookupNews(ctx context.Context, query string) (string, error) {
	return m.newsFunc(ctx, query)
}

type mockImages struct {
	generateFunc func(ctx context.Context, prompt string) (Image, error)
	calls        int
	prompts      []string
}

func (m *mockImages) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.generateFunc(ctx, prompt)
}

type mockSocial struct {
	analyzeFunc func(ctx context.Context, url string) (string, error)
}

func (m *mockSocial) AnalyzePost(ctx context.Context, url string) (string, error) {
	return m.analyzeFunc(ctx, url)
}

type mockSynthesizer struct {
	synthesizeFunc func(ctx context.Context, combined, query string) (string, error)
	calls          int
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, combined, query string) (string, error) {
	m.calls++
	return m.synthesizeFunc(ctx, combined, query)
}

type mockDecomposer struct {
	decomposeFunc func(ctx context.Context, query string) ([]PlannedStep, error)
	calls         int
}

func (m *mockDecomposer) Decompose(ctx context.Context, query string) ([]PlannedStep, error) {
	m.calls++
	return m.decomposeFunc(ctx, query)
}

type captureObserver struct {
	mu          sync.Mutex
	resolutions []ResolutionMode
	outcomes    []bool
	calls       map[Capability][]bool
}

func newCaptureObserver() *captureObserver {
	return &captureObserver{calls: make(map[Capability][]bool)}
}

func (c *captureObserver) ObserveResolution(mode ResolutionMode, ok bool, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolutions = append(c.resolutions, mode)
	c.outcomes = append(c.outcomes, ok)
}

func (c *captureObserver) ObserveCapabilityCall(capability Capability, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[capability] = append(c.calls[capability], ok)
}

func ok(text string) func(context.Context, Prompt) (string, error) {
	return func(context.Context, Prompt) (string, error) { return text, nil }
}

func fail(err error) func(context.Context, Prompt) (string, error) {
	return func(context.Context, Prompt) (string, error) { return "", err }
}

func btcQuote() PriceQuote {
	return PriceQuote{
		ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC",
		Price: 67000.12, MarketCap: 1.32e12, Volume: 2.8e10, Change24h: 2.35,
	}
}
