// Package roma implements the recursive task-resolution engine: an Atomizer
// decides whether a task runs directly, a Planner splits the ones that don't,
// the Executor routes atomic tasks to a capability and the Aggregator merges
// sub-results back into one answer.
package roma

import (
	"fmt"
	"strings"
)

// MaxDepth is the recursion ceiling. Tasks at this depth always execute directly.
const MaxDepth = 2

// Capability identifies an external function the Executor can dispatch to.
type Capability string

const (
	CapabilityPriceLookup    Capability = "price_lookup"
	CapabilityTextAnswer     Capability = "text_answer"
	CapabilityNewsLookup     Capability = "news_lookup"
	CapabilityImageGenerate  Capability = "image_generate"
	CapabilitySocialAnalyze  Capability = "social_analyze"
	CapabilityAskUser        Capability = "ask_user"
	CapabilityTextSynthesize Capability = "text_synthesize"
	CapabilityIntentRoute    Capability = "intent_route"
	// CapabilityInternal tags faults inside the engine's own control flow.
	CapabilityInternal Capability = "internal"
)

// RoutableCapabilities lists the capabilities a RoutingDecision may select, in priority order.
func RoutableCapabilities() []Capability {
	return []Capability{
		CapabilitySocialAnalyze,
		CapabilityTextAnswer,
		CapabilityPriceLookup,
		CapabilityNewsLookup,
		CapabilityImageGenerate,
		CapabilityAskUser,
	}
}

// IsRoutable reports whether c may be returned by a router.
func (c Capability) IsRoutable() bool {
	for _, r := range RoutableCapabilities() {
		if c == r {
			return true
		}
	}
	return false
}

// Label is the human-readable provider name shown in aggregated output.
func (c Capability) Label() string {
	switch c {
	case CapabilityPriceLookup:
		return "Market Data"
	case CapabilityTextAnswer:
		return "Research"
	case CapabilityNewsLookup:
		return "News"
	case CapabilityImageGenerate:
		return "Image"
	case CapabilitySocialAnalyze:
		return "Social"
	case CapabilityAskUser:
		return "Clarification"
	case CapabilityTextSynthesize:
		return "Synthesis"
	case CapabilityIntentRoute:
		return "Routing"
	case CapabilityInternal:
		return "Internal"
	default:
		return string(c)
	}
}

// TaskKind tags a task with the kind of work the Planner intended for it.
type TaskKind string

const (
	KindResearch   TaskKind = "research"
	KindPrice      TaskKind = "price"
	KindAnalysis   TaskKind = "analysis"
	KindNews       TaskKind = "news"
	KindComparison TaskKind = "comparison"
	KindImage      TaskKind = "image"
	KindSocial     TaskKind = "social"
)

// ParseTaskKind maps a free-form type label onto a known kind. Unknown labels become research.
func ParseTaskKind(s string) TaskKind {
	switch k := TaskKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPrice, KindAnalysis, KindNews, KindComparison, KindImage, KindSocial, KindResearch:
		return k
	default:
		return KindResearch
	}
}

// PriorTurn is one earlier exchange from the caller's conversation history.
type PriorTurn struct {
	Query    string
	Response string
}

// Task is one unit of work. Tasks are values; descending creates a new one.
type Task struct {
	Query   string
	Kind    TaskKind
	Depth   int
	History []PriorTurn // most recent first
}

// NewTask creates a root task at depth 0.
func NewTask(query string, history []PriorTurn) Task {
	return Task{
		Query:   query,
		Kind:    KindResearch,
		History: append([]PriorTurn(nil), history...),
	}
}

// child derives a subtask one level deeper.
func (t Task) child(step PlannedStep) Task {
	return Task{
		Query:   step.Query,
		Kind:    step.Kind,
		Depth:   t.Depth + 1,
		History: t.History,
	}
}

// RoutingDecision is the router's choice of capability for a query.
type RoutingDecision struct {
	Capability    Capability `json:"capability"`
	Confidence    float64    `json:"confidence"`
	Reason        string     `json:"reason"`
	Clarification string     `json:"clarification,omitempty"`
}

// Payload carries a successful result. Structured is set for data results such as prices.
type Payload struct {
	Content    string
	Structured map[string]any
	ImageURL   string
	Source     string
}

// ExecutionResult is the normalized outcome of one atomic task.
// Payload is set when OK is true and Error when it is false.
type ExecutionResult struct {
	OK             bool
	CapabilityUsed Capability
	Payload        *Payload
	Error          *ErrorInfo
	NeedsInput     bool
	Identifier     string
}

// Succeeded builds a successful result.
func Succeeded(c Capability, p Payload) ExecutionResult {
	return ExecutionResult{OK: true, CapabilityUsed: c, Payload: &p}
}

// Failed builds a failed result.
func Failed(c Capability, kind ErrorKind, format string, args ...any) ExecutionResult {
	return ExecutionResult{
		CapabilityUsed: c,
		Error:          &ErrorInfo{Kind: kind, Detail: fmt.Sprintf(format, args...)},
	}
}

// Text returns the result's user-facing text.
func (r ExecutionResult) Text() string {
	if r.OK && r.Payload != nil {
		return r.Payload.Content
	}
	if r.Error != nil {
		return r.Error.Detail
	}
	return ""
}

// Contribution records how one sub-result took part in an aggregation.
type Contribution struct {
	CapabilityUsed Capability
	OK             bool
}

// AggregationResult is the merged outcome of a decomposition. OK is always true.
type AggregationResult struct {
	OK           bool
	Content      string
	Synthesis    string
	Contributing []Contribution
	SubtaskCount int
	Subresults   []ExecutionResult
}

// Outcome is what Resolve returns: exactly one of Execution or Aggregation is set.
type Outcome struct {
	Execution   *ExecutionResult
	Aggregation *AggregationResult
}

// OK reports whether the outcome carries an answer.
func (o Outcome) OK() bool {
	if o.Aggregation != nil {
		return true
	}
	return o.Execution != nil && o.Execution.OK
}

// Content returns the outcome's user-facing text.
func (o Outcome) Content() string {
	if o.Aggregation != nil {
		return o.Aggregation.Content
	}
	if o.Execution != nil {
		return o.Execution.Text()
	}
	return ""
}

// Identifier is a canonical provider identifier extracted from free text.
type Identifier struct {
	ID         string
	Confidence float64
}

// PriceQuote is a market-data snapshot for one asset.
type PriceQuote struct {
	ID        string
	Name      string
	Symbol    string
	Price     float64
	MarketCap float64
	Volume    float64
	Change24h float64
}

// Map returns the quote as a structured payload.
func (q PriceQuote) Map() map[string]any {
	return map[string]any{
		"id":         q.ID,
		"name":       q.Name,
		"symbol":     q.Symbol,
		"price":      q.Price,
		"market_cap": q.MarketCap,
		"volume":     q.Volume,
		"change_24h": q.Change24h,
	}
}

// Image is a generated image reference.
type Image struct {
	URL    string
	Width  int
	Height int
	Model  string
}

// Prompt is a reasoning request. System may be empty.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	Stage       string
}

// PlannedStep is one sub-query proposed by a decomposer.
type PlannedStep struct {
	Query string
	Kind  TaskKind
}
