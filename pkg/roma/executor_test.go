package roma

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(c IntentClassifier, p Providers) *Executor {
	return NewExecutor(NewRouter(c), p, nil)
}

func TestExecutePrice(t *testing.T) {
	var lookedUp string
	p := Providers{
		Extractor: &mockExtractor{extractFunc: func(context.Context, string) (Identifier, error) {
			return Identifier{ID: "bitcoin", Confidence: 0.95}, nil
		}},
		Prices: &mockPrices{lookupFunc: func(_ context.Context, id string) (PriceQuote, error) {
			lookedUp = id
			return btcQuote(), nil
		}},
	}

	res := newTestExecutor(routeTo(CapabilityPriceLookup), p).Execute(context.Background(), Task{Query: "bitcoin price"})

	require.True(t, res.OK)
	assert.Nil(t, res.Error)
	assert.Equal(t, "bitcoin", lookedUp)
	assert.Equal(t, "bitcoin", res.Identifier)
	assert.Equal(t, CapabilityPriceLookup, res.CapabilityUsed)
	assert.Equal(t, 67000.12, res.Payload.Structured["price"])
	assert.Equal(t, "BTC", res.Payload.Structured["symbol"])
	assert.Contains(t, res.Payload.Content, "$67,000.12")
}

func TestExecutePriceFailures(t *testing.T) {
	tests := []struct {
		name    string
		extract func(context.Context, string) (Identifier, error)
		lookup  func(context.Context, string) (PriceQuote, error)
		kind    ErrorKind
	}{
		{
			name:    "extraction error",
			extract: func(context.Context, string) (Identifier, error) { return Identifier{}, errors.New("no coin") },
			kind:    ErrorKindExtraction,
		},
		{
			name:    "empty identifier",
			extract: func(context.Context, string) (Identifier, error) { return Identifier{}, nil },
			kind:    ErrorKindExtraction,
		},
		{
			name:    "price provider error",
			extract: func(context.Context, string) (Identifier, error) { return Identifier{ID: "bitcoin"}, nil },
			lookup:  func(context.Context, string) (PriceQuote, error) { return PriceQuote{}, errors.New("HTTP 500") },
			kind:    ErrorKindProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := tt.lookup
			if lookup == nil {
				lookup = func(context.Context, string) (PriceQuote, error) {
					t.Fatal("price lookup must not be called")
					return PriceQuote{}, nil
				}
			}
			p := Providers{
				Extractor: &mockExtractor{extractFunc: tt.extract},
				Prices:    &mockPrices{lookupFunc: lookup},
			}

			res := newTestExecutor(routeTo(CapabilityPriceLookup), p).Execute(context.Background(), Task{Query: "price"})

			assert.False(t, res.OK)
			assert.Nil(t, res.Payload)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.kind, res.Error.Kind)
		})
	}
}

type statusError struct{ transient bool }

func (e *statusError) Error() string   { return "upstream status" }
func (e *statusError) Transient() bool { return e.transient }

func TestExecuteProviderRetryHint(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"plain error", errors.New("connection reset"), false},
		{"transient status", &statusError{transient: true}, false},
		{"permanent status", fmt.Errorf("wrapped: %w", &statusError{transient: false}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Providers{
				Extractor: &mockExtractor{extractFunc: func(context.Context, string) (Identifier, error) {
					return Identifier{ID: "bitcoin"}, nil
				}},
				Prices: &mockPrices{lookupFunc: func(context.Context, string) (PriceQuote, error) {
					return PriceQuote{}, tt.err
				}},
			}

			res := newTestExecutor(routeTo(CapabilityPriceLookup), p).Execute(context.Background(), Task{Query: "btc price"})

			require.NotNil(t, res.Error)
			assert.Equal(t, ErrorKindProvider, res.Error.Kind)
			assert.Equal(t, tt.permanent, res.Error.Permanent)
			assert.Equal(t, !tt.permanent, res.Error.RetryAvailable())
		})
	}
}

func TestExecuteTextAnswerFallback(t *testing.T) {
	primary := &mockReasoner{reasonFunc: fail(errors.New("gemini unavailable"))}
	secondary := &mockReasoner{reasonFunc: ok("Ethereum is a smart contract platform.")}
	p := Providers{Reasoners: NewFallbackReasoner(
		NamedReasoner{Name: "primary", Reasoner: primary},
		NamedReasoner{Name: "secondary", Reasoner: secondary},
	)}

	res := newTestExecutor(routeTo(CapabilityTextAnswer), p).Execute(context.Background(), Task{Query: "what is ethereum"})

	require.True(t, res.OK)
	assert.Nil(t, res.Error)
	assert.Equal(t, "Ethereum is a smart contract platform.", res.Payload.Content)
	assert.Equal(t, "secondary", res.Payload.Source)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, primary.prompts[0], secondary.prompts[0])
}

func TestExecuteTextAnswerAllFail(t *testing.T) {
	p := Providers{Reasoners: NewFallbackReasoner(
		NamedReasoner{Name: "primary", Reasoner: &mockReasoner{reasonFunc: fail(errors.New("down"))}},
		NamedReasoner{Name: "secondary", Reasoner: &mockReasoner{reasonFunc: fail(errors.New("down too"))}},
	)}

	res := newTestExecutor(routeTo(CapabilityTextAnswer), p).Execute(context.Background(), Task{Query: "what is ethereum"})

	assert.False(t, res.OK)
	assert.Equal(t, ErrorKindProvider, res.Error.Kind)
	assert.True(t, res.Error.Kind.RetryAvailable())
}

func TestExecuteTextAnswerIncludesHistory(t *testing.T) {
	reasoner := &mockReasoner{reasonFunc: ok("answer")}
	p := Providers{Reasoners: NewFallbackReasoner(NamedReasoner{Name: "primary", Reasoner: reasoner})}
	task := Task{
		Query: "and its use cases?",
		History: []PriorTurn{
			{Query: "what is ethereum", Response: "A platform."},
			{Query: "hi", Response: "Hello."},
		},
	}

	res := newTestExecutor(routeTo(CapabilityTextAnswer), p).Execute(context.Background(), task)
	require.True(t, res.OK)

	user := reasoner.prompts[0].User
	assert.Contains(t, user, "User: hi\nAssistant: Hello.\nUser: what is ethereum")
	assert.Contains(t, user, "Question: and its use cases?")
}

func TestExecuteNews(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		ok      bool
		want    string
	}{
		{name: "items", content: "1. **BTC ETF inflows**", ok: true, want: "1. **BTC ETF inflows**"},
		{name: "empty is not a failure", content: "  ", ok: true, want: NoNewsMessage},
		{name: "provider error", err: errors.New("feeds down"), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Providers{News: &mockNews{newsFunc: func(context.Context, string) (string, error) {
				return tt.content, tt.err
			}}}

			res := newTestExecutor(routeTo(CapabilityNewsLookup), p).Execute(context.Background(), Task{Query: "btc news"})

			assert.Equal(t, tt.ok, res.OK)
			if tt.ok {
				assert.Equal(t, tt.want, res.Payload.Content)
				return
			}
			assert.Equal(t, ErrorKindProvider, res.Error.Kind)
		})
	}
}

func TestExecuteSocial(t *testing.T) {
	var got string
	p := Providers{Social: &mockSocial{analyzeFunc: func(_ context.Context, url string) (string, error) {
		got = url
		return "Bullish thread.", nil
	}}}

	res := newTestExecutor(routeTo(CapabilitySocialAnalyze), p).Execute(context.Background(),
		Task{Query: "https://x.com/user/status/123"})

	require.True(t, res.OK)
	assert.Equal(t, "https://x.com/user/status/123", got)
	assert.Equal(t, "Bullish thread.", res.Payload.Content)
}

func TestExecuteAskUser(t *testing.T) {
	classifier := &mockClassifier{classifyFunc: func(context.Context, string) (RoutingDecision, error) {
		return RoutingDecision{Capability: CapabilityAskUser, Clarification: "Which coin do you mean?"}, nil
	}}

	res := newTestExecutor(classifier, Providers{}).Execute(context.Background(), Task{Query: "hmm"})

	require.True(t, res.OK)
	assert.True(t, res.NeedsInput)
	assert.Nil(t, res.Error)
	assert.Equal(t, "Which coin do you mean?", res.Payload.Content)
}

func TestExecuteRoutingFailure(t *testing.T) {
	classifier := &mockClassifier{classifyFunc: func(context.Context, string) (RoutingDecision, error) {
		return RoutingDecision{}, errors.New("timeout")
	}}

	res := newTestExecutor(classifier, Providers{}).Execute(context.Background(), Task{Query: "bitcoin price"})

	assert.False(t, res.OK)
	assert.Equal(t, ErrorKindRouting, res.Error.Kind)
	assert.True(t, res.Error.Kind.RetryAvailable())
}

func TestExecuteImageShortDescription(t *testing.T) {
	reasoner := &mockReasoner{reasonFunc: ok("enhanced")}
	images := &mockImages{generateFunc: func(context.Context, string) (Image, error) {
		return Image{URL: "https://img"}, nil
	}}
	p := Providers{
		Reasoners: NewFallbackReasoner(NamedReasoner{Name: "primary", Reasoner: reasoner}),
		Images:    images,
	}

	res := newTestExecutor(routeTo(CapabilityImageGenerate), p).Execute(context.Background(), Task{Query: "create image cat"})

	require.True(t, res.OK)
	assert.True(t, res.NeedsInput)
	assert.Equal(t, ImageClarification, res.Payload.Content)
	assert.Zero(t, reasoner.calls)
	assert.Zero(t, images.calls)
}

func TestExecuteImageEnhancement(t *testing.T) {
	tests := []struct {
		name       string
		primary    func(context.Context, Prompt) (string, error)
		secondary  func(context.Context, Prompt) (string, error)
		wantPrompt string
	}{
		{
			name:       "primary enhances",
			primary:    ok("cinematic bitcoin rocket"),
			secondary:  ok("unused"),
			wantPrompt: "cinematic bitcoin rocket",
		},
		{
			name:       "secondary enhances",
			primary:    fail(errors.New("down")),
			secondary:  ok("neon bitcoin rocket"),
			wantPrompt: "neon bitcoin rocket",
		},
		{
			name:       "both fail uses description",
			primary:    fail(errors.New("down")),
			secondary:  fail(errors.New("down")),
			wantPrompt: "a bitcoin rocket in space",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := &mockImages{generateFunc: func(context.Context, string) (Image, error) {
				return Image{URL: "https://fal.media/x.jpg", Width: 1024, Height: 768, Model: "FLUX.1 [dev]"}, nil
			}}
			p := Providers{
				Reasoners: NewFallbackReasoner(
					NamedReasoner{Name: "primary", Reasoner: &mockReasoner{reasonFunc: tt.primary}},
					NamedReasoner{Name: "secondary", Reasoner: &mockReasoner{reasonFunc: tt.secondary}},
				),
				Images: images,
			}

			res := newTestExecutor(routeTo(CapabilityImageGenerate), p).Execute(context.Background(),
				Task{Query: "create image of a bitcoin rocket in space"})

			require.True(t, res.OK)
			assert.Equal(t, []string{tt.wantPrompt}, images.prompts)
			assert.Equal(t, "https://fal.media/x.jpg", res.Payload.ImageURL)
			assert.Equal(t, 1024, res.Payload.Structured["width"])
		})
	}
}

func TestExecuteImageEmptyResult(t *testing.T) {
	images := &mockImages{generateFunc: func(context.Context, string) (Image, error) {
		return Image{}, nil
	}}

	res := newTestExecutor(routeTo(CapabilityImageGenerate), Providers{Images: images}).Execute(context.Background(),
		Task{Query: "create image of a bitcoin rocket in space"})

	require.True(t, res.OK)
	assert.Nil(t, res.Error)
	assert.Equal(t, CapabilityImageGenerate, res.CapabilityUsed)
	assert.Equal(t, NoImageMessage, res.Payload.Content)
	assert.Empty(t, res.Payload.ImageURL)
	assert.Len(t, images.prompts, 1)
}

func TestExecuteImagePhrasingOverridesRoute(t *testing.T) {
	images := &mockImages{generateFunc: func(context.Context, string) (Image, error) {
		return Image{}, errors.New("fal 500")
	}}
	p := Providers{Images: images}

	res := newTestExecutor(routeTo(CapabilityAskUser), p).Execute(context.Background(),
		Task{Query: "tạo hình bitcoin on the moon"})

	assert.False(t, res.OK)
	assert.Equal(t, CapabilityImageGenerate, res.CapabilityUsed)
	assert.Equal(t, ErrorKindProvider, res.Error.Kind)
	assert.Equal(t, []string{"bitcoin on the moon"}, images.prompts)
}

func TestExecuteMissingProviders(t *testing.T) {
	for _, c := range []Capability{CapabilityPriceLookup, CapabilityNewsLookup, CapabilitySocialAnalyze, CapabilityTextAnswer} {
		t.Run(string(c), func(t *testing.T) {
			res := newTestExecutor(routeTo(c), Providers{}).Execute(context.Background(), Task{Query: "q"})
			assert.False(t, res.OK)
			assert.Equal(t, ErrorKindProvider, res.Error.Kind)
		})
	}
}

func TestExecuteObservesCalls(t *testing.T) {
	obs := newCaptureObserver()
	p := Providers{News: &mockNews{newsFunc: func(context.Context, string) (string, error) { return "", nil }}}

	NewExecutor(NewRouter(routeTo(CapabilityNewsLookup)), p, obs).Execute(context.Background(), Task{Query: "news"})

	assert.Equal(t, []bool{true}, obs.calls[CapabilityIntentRoute])
	assert.Equal(t, []bool{true}, obs.calls[CapabilityNewsLookup])
}
