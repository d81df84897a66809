package roma

import (
	"context"
	"fmt"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// SynthesisHeader separates the combined sub-results from the synthesized answer.
const SynthesisHeader = "**[AI SYNTHESIS]**"

// Aggregator merges the ordered results of a decomposition.
type Aggregator struct {
	synthesizer Synthesizer
	observer    Observer
}

// NewAggregator creates an aggregator. A nil synthesizer returns the raw combination.
func NewAggregator(synthesizer Synthesizer, observer Observer) *Aggregator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Aggregator{synthesizer: synthesizer, observer: observer}
}

// Aggregate never fails. Failed sub-results are left out of the combined text
// but still counted, and a synthesis failure degrades to the raw combination.
func (a *Aggregator) Aggregate(ctx context.Context, task Task, results []ExecutionResult) AggregationResult {
	combined, succeeded := combine(task.Query, results)

	agg := AggregationResult{
		OK:           true,
		Content:      combined,
		SubtaskCount: len(results),
		Subresults:   results,
		Contributing: make([]Contribution, 0, len(results)),
	}
	for _, r := range results {
		agg.Contributing = append(agg.Contributing, Contribution{CapabilityUsed: r.CapabilityUsed, OK: r.OK})
	}

	logx.Debug(ctx, "aggregator", "%d/%d sub-results succeeded for %q", succeeded, len(results), task.Query)

	if succeeded == 0 || a.synthesizer == nil {
		return agg
	}

	synthesis, err := a.synthesizer.Synthesize(ctx, combined, task.Query)
	a.observer.ObserveCapabilityCall(CapabilityTextSynthesize, err == nil)
	if err != nil {
		logx.Debug(ctx, "aggregator", "synthesis failed, returning combined results: %v", err)
		return agg
	}
	if synthesis = strings.TrimSpace(synthesis); synthesis == "" {
		return agg
	}

	agg.Synthesis = synthesis
	agg.Content = combined + "\n\n" + SynthesisHeader + "\n" + synthesis
	return agg
}

func combine(query string, results []ExecutionResult) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "[COMPREHENSIVE ANALYSIS] %s\n\n", query)

	succeeded := 0
	for i, r := range results {
		if !r.OK || r.Payload == nil {
			continue
		}
		succeeded++
		fmt.Fprintf(&b, "**%d. %s Analysis:**\n", i+1, r.CapabilityUsed.Label())
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(r.Payload.Content))
	}

	if failed := len(results) - succeeded; failed > 0 {
		fmt.Fprintf(&b, "_%d of %d research steps could not be completed._", failed, len(results))
	}
	if succeeded == 0 {
		b.WriteString("\n\nNo data could be gathered for this question right now. Please try again in a moment.")
	}
	return strings.TrimRight(b.String(), "\n"), succeeded
}
