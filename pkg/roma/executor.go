package roma

import (
	"context"
	"fmt"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// Source labels reported on results.
const (
	SourceClarification = "Clarification"
	SourceMarketData    = "CoinGecko"
	SourceNews          = "RSS News"
	SourceImage         = "fal.ai"
	SourceSocial        = "Social Analysis"
	SourceAggregated    = "ROMA Aggregated"
)

// NoNewsMessage is returned when a news lookup succeeds with nothing to report.
const NoNewsMessage = "No recent news found for this query. Try: 'bitcoin news' or 'crypto news today'"

// NoImageMessage is returned when generation succeeds without producing an image.
const NoImageMessage = "No image was produced for this description. It may have been filtered; try rephrasing it with more detail."

// Providers are the capability implementations the engine calls.
// Reasoners is the primary/secondary text_answer chain.
type Providers struct {
	Classifier  IntentClassifier
	Extractor   IdentifierExtractor
	Prices      PriceSource
	Reasoners   *FallbackReasoner
	News        NewsSource
	Images      ImageGenerator
	Social      SocialAnalyzer
	Synthesizer Synthesizer
	Decomposer  Decomposer
}

// Executor resolves one atomic task to a capability call.
type Executor struct {
	router    *Router
	providers Providers
	observer  Observer
}

// NewExecutor creates an executor. A nil observer discards events.
func NewExecutor(router *Router, providers Providers, observer Observer) *Executor {
	if observer == nil {
		observer = nopObserver{}
	}
	if providers.Reasoners == nil {
		providers.Reasoners = NewFallbackReasoner()
	}
	return &Executor{router: router, providers: providers, observer: observer}
}

// Execute routes the task and dispatches to the selected capability.
// Every outcome, including provider faults, comes back as an ExecutionResult.
func (e *Executor) Execute(ctx context.Context, task Task) ExecutionResult {
	decision, err := e.router.Route(ctx, task.Query)
	if err != nil {
		logx.Debug(ctx, "executor", "routing failed for %q: %v", task.Query, err)
		e.observer.ObserveCapabilityCall(CapabilityIntentRoute, false)
		return Failed(CapabilityIntentRoute, ErrorKindRouting, "Failed to analyze request: %v", err)
	}
	e.observer.ObserveCapabilityCall(CapabilityIntentRoute, true)

	// Image phrasing wins even when the router picked something else.
	if decision.Capability != CapabilityImageGenerate && imagePhrase.MatchString(task.Query) {
		logx.Debug(ctx, "executor", "image phrasing overrides %s", decision.Capability)
		decision.Capability = CapabilityImageGenerate
	}

	var result ExecutionResult
	switch decision.Capability {
	case CapabilityPriceLookup:
		result = e.executePrice(ctx, task)
	case CapabilityTextAnswer:
		result = e.executeTextAnswer(ctx, task)
	case CapabilityNewsLookup:
		result = e.executeNews(ctx, task)
	case CapabilitySocialAnalyze:
		result = e.executeSocial(ctx, task)
	case CapabilityImageGenerate:
		result = e.executeImage(ctx, task)
	case CapabilityAskUser:
		result = clarify(CapabilityAskUser, decision.Clarification)
	default:
		return Failed(decision.Capability, ErrorKindRouting, "Unknown capability: %s", decision.Capability)
	}

	if !result.NeedsInput {
		e.observer.ObserveCapabilityCall(result.CapabilityUsed, result.OK)
	}
	return result
}

func clarify(c Capability, text string) ExecutionResult {
	r := Succeeded(c, Payload{Content: text, Source: SourceClarification})
	r.NeedsInput = true
	return r
}

func (e *Executor) executePrice(ctx context.Context, task Task) ExecutionResult {
	if e.providers.Extractor == nil || e.providers.Prices == nil {
		return Failed(CapabilityPriceLookup, ErrorKindProvider, "price lookup is not configured")
	}

	ident, err := e.providers.Extractor.ExtractIdentifier(ctx, task.Query)
	if err != nil || ident.ID == "" {
		if err == nil {
			err = fmt.Errorf("no identifier found")
		}
		return Failed(CapabilityPriceLookup, ErrorKindExtraction, "Could not identify the coin in %q: %v", task.Query, err)
	}

	quote, err := e.providers.Prices.LookupPrice(ctx, ident.ID)
	if err != nil {
		return providerFailed(CapabilityPriceLookup, err, "Price lookup for %s failed: %v", ident.ID, err)
	}

	logx.Debug(ctx, "executor", "price %s (%s) = %.2f", quote.Name, quote.Symbol, quote.Price)
	result := Succeeded(CapabilityPriceLookup, Payload{
		Content:    FormatQuote(quote),
		Structured: quote.Map(),
		Source:     SourceMarketData,
	})
	result.Identifier = ident.ID
	return result
}

func (e *Executor) executeTextAnswer(ctx context.Context, task Task) ExecutionResult {
	text, source, err := e.providers.Reasoners.ReasonWithSource(ctx, Prompt{
		System:      answerSystemPrompt,
		User:        withHistory(task),
		Temperature: 0.2,
		MaxTokens:   400,
		Stage:       "answer",
	})
	if err != nil {
		return Failed(CapabilityTextAnswer, ErrorKindProvider, "All reasoning providers failed: %v", err)
	}
	return Succeeded(CapabilityTextAnswer, Payload{Content: strings.TrimSpace(text), Source: source})
}

func (e *Executor) executeNews(ctx context.Context, task Task) ExecutionResult {
	if e.providers.News == nil {
		return Failed(CapabilityNewsLookup, ErrorKindProvider, "news lookup is not configured")
	}
	content, err := e.providers.News.LookupNews(ctx, task.Query)
	if err != nil {
		return providerFailed(CapabilityNewsLookup, err, "News lookup failed: %v", err)
	}
	if strings.TrimSpace(content) == "" {
		content = NoNewsMessage
	}
	return Succeeded(CapabilityNewsLookup, Payload{Content: content, Source: SourceNews})
}

func (e *Executor) executeSocial(ctx context.Context, task Task) ExecutionResult {
	if e.providers.Social == nil {
		return Failed(CapabilitySocialAnalyze, ErrorKindProvider, "social analysis is not configured")
	}
	content, err := e.providers.Social.AnalyzePost(ctx, task.Query)
	if err != nil {
		return Failed(CapabilitySocialAnalyze, ErrorKindProvider, "Social analysis failed: %v", err)
	}
	if strings.TrimSpace(content) == "" {
		content = "The post could not be analyzed. Check that the link points to a public post."
	}
	return Succeeded(CapabilitySocialAnalyze, Payload{Content: content, Source: SourceSocial})
}

func (e *Executor) executeImage(ctx context.Context, task Task) ExecutionResult {
	description := ImageDescription(task.Query)
	if len(strings.Fields(description)) < MinImageWords {
		return clarify(CapabilityImageGenerate, ImageClarification)
	}
	if e.providers.Images == nil {
		return Failed(CapabilityImageGenerate, ErrorKindProvider, "image generation is not configured")
	}

	prompt := description
	enhanced, source, err := e.providers.Reasoners.ReasonWithSource(ctx, Prompt{
		System:      enhanceSystemPrompt,
		User:        description,
		Temperature: 0.7,
		MaxTokens:   200,
		Stage:       "enhance",
	})
	switch {
	case err != nil:
		logx.Debug(ctx, "executor", "prompt enhancement failed, using description: %v", err)
	case strings.TrimSpace(enhanced) != "":
		logx.Debug(ctx, "executor", "prompt enhanced by %s", source)
		prompt = strings.TrimSpace(enhanced)
	}

	img, err := e.providers.Images.GenerateImage(ctx, prompt)
	if err != nil {
		return providerFailed(CapabilityImageGenerate, err, "Image generation failed: %v", err)
	}
	if img.URL == "" {
		return Succeeded(CapabilityImageGenerate, Payload{
			Content: NoImageMessage,
			Source:  SourceImage,
		})
	}

	content := fmt.Sprintf("**Generated Image** (%s, %dx%d)\n\n**Prompt:** %s", img.Model, img.Width, img.Height, prompt)
	return Succeeded(CapabilityImageGenerate, Payload{
		Content:  content,
		ImageURL: img.URL,
		Structured: map[string]any{
			"image_url": img.URL,
			"width":     img.Width,
			"height":    img.Height,
			"model":     img.Model,
			"prompt":    prompt,
		},
		Source: SourceImage,
	})
}

const answerSystemPrompt = `You answer crypto and finance questions.
Answer in the same language as the question.
Use 2-3 short sentences focused on the key point.`

const enhanceSystemPrompt = `Convert the user's image description into a detailed prompt for the FLUX.1 image model.
Keep every text the user asked to appear in the image.
Add artistic details: style, lighting, composition.
Return only the enhanced prompt, no explanations.`

// withHistory prefixes the query with earlier turns, oldest first.
func withHistory(task Task) string {
	if len(task.History) == 0 {
		return task.Query
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for i := len(task.History) - 1; i >= 0; i-- {
		h := task.History[i]
		fmt.Fprintf(&b, "User: %s\n", h.Query)
		if h.Response != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", truncate(h.Response, 300))
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(task.Query)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
