package roma

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// Resolver is the top-level loop. The depth ceiling is enforced here and nowhere else.
type Resolver struct {
	atomizer   *Atomizer
	planner    *Planner
	executor   *Executor
	aggregator *Aggregator
	observer   Observer
	logger     *logx.Logger
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	complex  Lexicon
	simple   Lexicon
	observer Observer
}

// WithLexicons replaces the atomizer's complex and simple markers.
func WithLexicons(complexMarkers, simpleMarkers Lexicon) Option {
	return func(o *resolverOptions) {
		o.complex = complexMarkers
		o.simple = simpleMarkers
	}
}

// WithObserver reports resolutions and capability calls to o.
func WithObserver(o Observer) Option {
	return func(opts *resolverOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// NewResolver wires the engine components over a provider set.
func NewResolver(providers Providers, opts ...Option) *Resolver {
	o := resolverOptions{
		complex:  DefaultComplexLexicon(),
		simple:   DefaultSimpleLexicon(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Resolver{
		atomizer:   NewAtomizer(o.complex, o.simple),
		planner:    NewPlanner(providers.Decomposer),
		executor:   NewExecutor(NewRouter(providers.Classifier), providers, o.observer),
		aggregator: NewAggregator(providers.Synthesizer, o.observer),
		observer:   o.observer,
		logger:     logx.NewLogger("resolver"),
	}
}

// Resolve answers a task. It never panics and never returns an error: every
// fault becomes a failed ExecutionResult.
func (r *Resolver) Resolve(ctx context.Context, task Task) (out Outcome) {
	start := time.Now()
	mode := ModeAtomic

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic resolving %q at depth %d: %v\n%s", task.Query, task.Depth, rec, debug.Stack())
			failed := Failed(CapabilityInternal, ErrorKindInternal, "Internal error: %v", rec)
			out = Outcome{Execution: &failed}
		}
		if task.Depth == 0 {
			elapsed := time.Since(start)
			r.observer.ObserveResolution(mode, out.OK(), elapsed.Seconds())
			r.logger.Info("resolved %q mode=%s ok=%t in %s", task.Query, mode, out.OK(), elapsed.Round(time.Millisecond))
		}
	}()

	if task.Depth >= MaxDepth {
		mode = ModeForced
		logx.Debug(ctx, "resolver", "max depth %d reached, executing %q directly", MaxDepth, task.Query)
		res := r.executor.Execute(ctx, task)
		return Outcome{Execution: &res}
	}

	if r.atomizer.IsAtomic(ctx, task) {
		logx.Debug(ctx, "resolver", "depth %d: atomic %q", task.Depth, task.Query)
		res := r.executor.Execute(ctx, task)
		return Outcome{Execution: &res}
	}

	mode = ModeDecomposed
	steps := r.planner.Plan(ctx, task)
	logx.Debug(ctx, "resolver", "depth %d: decomposed %q into %d steps", task.Depth, task.Query, len(steps))

	results := make([]ExecutionResult, 0, len(steps))
	for i, step := range steps {
		logx.Debug(ctx, "resolver", "subtask %d/%d: %s", i+1, len(steps), step.Query)
		results = append(results, flatten(r.Resolve(ctx, task.child(step))))
	}

	agg := r.aggregator.Aggregate(ctx, task, results)
	return Outcome{Aggregation: &agg}
}

// flatten presents a nested aggregation as a single result for its parent.
func flatten(o Outcome) ExecutionResult {
	if o.Execution != nil {
		return *o.Execution
	}
	if o.Aggregation != nil {
		return Succeeded(CapabilityTextSynthesize, Payload{Content: o.Aggregation.Content, Source: SourceAggregated})
	}
	return Failed(CapabilityInternal, ErrorKindInternal, "empty outcome")
}
