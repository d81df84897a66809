package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ntclick/ai-research-roma/pkg/agent"
	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	llmmetrics "github.com/ntclick/ai-research-roma/pkg/agent/middleware/metrics"
	"github.com/ntclick/ai-research-roma/pkg/capability"
	"github.com/ntclick/ai-research-roma/pkg/capability/coingecko"
	"github.com/ntclick/ai-research-roma/pkg/capability/fal"
	"github.com/ntclick/ai-research-roma/pkg/capability/news"
	"github.com/ntclick/ai-research-roma/pkg/capability/social"
	"github.com/ntclick/ai-research-roma/pkg/config"
	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/metrics"
	"github.com/ntclick/ai-research-roma/pkg/persistence"
	"github.com/ntclick/ai-research-roma/pkg/roma"
	"github.com/ntclick/ai-research-roma/pkg/session"
	"github.com/ntclick/ai-research-roma/pkg/webui"
)

// appOptions overrides process-wide defaults, mainly in tests.
type appOptions struct {
	registry   *prometheus.Registry
	rawBuilder agent.RawClientBuilder
	inMemory   bool
}

// app holds the wired service.
type app struct {
	cfg       *config.Config
	sessions  *session.Manager
	server    *webui.Server
	closeFunc func() error
	logger    *logx.Logger
}

func (a *app) Close() error {
	if a.closeFunc == nil {
		return nil
	}
	return a.closeFunc()
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	logger := logx.NewLogger("roma")

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.registry != nil {
		registerer, gatherer = opts.registry, opts.registry
	}

	internalUsage := llmmetrics.NewInternalRecorder()
	var (
		llmRecorder llmmetrics.Recorder = internalUsage
		observer    roma.Observer
	)
	if cfg.Metrics.Enabled {
		llmRecorder = llmmetrics.Multi(llmmetrics.NewPrometheusRecorder(registerer), internalUsage)
		observer = metrics.NewEngineRecorder(registerer, cfg.Metrics.Namespace)
	}

	factory := agent.NewLLMClientFactory(*cfg, llmRecorder)
	if opts.rawBuilder != nil {
		factory.WithRawClientBuilder(opts.rawBuilder)
	}

	providers := buildProviders(cfg, newReasonerSet(factory, logger))
	resolverOpts := []roma.Option{}
	if observer != nil {
		resolverOpts = append(resolverOpts, roma.WithObserver(observer))
	}
	resolver := roma.NewResolver(providers, resolverOpts...)

	var (
		store     session.HistoryStore
		closeFunc func() error
	)
	if !opts.inMemory {
		db, err := persistence.Open(cfg.Persistence.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		store = persistence.NewHistoryStore(db, cfg.Server.HistoryLimit)
		closeFunc = db.Close
	}

	sessions, err := session.NewManager(resolver, store, cfg.Server)
	if err != nil {
		if closeFunc != nil {
			_ = closeFunc()
		}
		return nil, err //nolint:wrapcheck // already descriptive
	}

	serverOpts := webui.Options{
		Password:      config.GetWebPassword(),
		Gatherer:      gatherer,
		InternalUsage: internalUsage,
	}
	if cfg.Metrics.PrometheusURL != "" {
		usage, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			logger.Warn("Usage queries disabled: %v", err)
		} else {
			serverOpts.Usage = usage
		}
	}

	return &app{
		cfg:       cfg,
		sessions:  sessions,
		server:    webui.NewServer(sessions, serverOpts),
		closeFunc: closeFunc,
		logger:    logger,
	}, nil
}

// reasonerSet builds fallback reasoner chains per role, sharing clients by model.
type reasonerSet struct {
	factory *agent.LLMClientFactory
	logger  *logx.Logger
	clients map[string]llm.LLMClient
}

func newReasonerSet(factory *agent.LLMClientFactory, logger *logx.Logger) *reasonerSet {
	return &reasonerSet{factory: factory, logger: logger, clients: make(map[string]llm.LLMClient)}
}

// chain returns a reasoner for role backed by the secondary model. Roles
// whose model cannot be built are skipped.
func (s *reasonerSet) chain(role agent.Role) *roma.FallbackReasoner {
	var named []roma.NamedReasoner
	seen := make(map[string]bool)
	for _, r := range []agent.Role{role, agent.RoleSecondary} {
		model, err := s.factory.ModelFor(r)
		if err != nil || seen[model] {
			continue
		}
		seen[model] = true

		client, ok := s.clients[model]
		if !ok {
			client, err = s.factory.CreateClientForModel(model)
			if err != nil {
				s.logger.Warn("Model %s unavailable for %s: %v", model, r, err)
				continue
			}
			s.clients[model] = client
		}
		named = append(named, roma.NamedReasoner{Name: model, Reasoner: capability.NewLLMReasoner(client)})
	}
	return roma.NewFallbackReasoner(named...)
}

func buildProviders(cfg *config.Config, reasoners *reasonerSet) roma.Providers {
	caps := cfg.Capabilities
	timeout := caps.HTTPTimeout.Std()

	answer := reasoners.chain(agent.RolePrimary)
	router := reasoners.chain(agent.RoleRouter)
	planner := reasoners.chain(agent.RolePlanner)
	synthesis := reasoners.chain(agent.RoleSynthesis)

	var classifiers []roma.IntentClassifier
	var extractors []roma.IdentifierExtractor
	p := roma.Providers{
		Prices:    coingecko.New(caps.CoinGeckoBaseURL, config.GetOptionalSecret(config.EnvCoinGeckoAPIKey), timeout),
		Reasoners: answer,
		News:      news.New(caps.NewsFeeds, caps.NewsMaxItems, caps.NewsMaxAge.Std(), timeout),
		Images:    fal.New(caps.FalBaseURL, caps.FalModel, config.GetOptionalSecret(config.EnvFalAPIKey), timeout),
		Social:    social.New(answer),
	}

	if router.Len() > 0 {
		classifiers = append(classifiers, capability.NewLLMClassifier(router))
		extractors = append(extractors, capability.NewLLMExtractor(router))
	}
	if caps.KeywordFallback || len(classifiers) == 0 {
		classifiers = append(classifiers, capability.NewKeywordClassifier(nil))
	}
	extractors = append(extractors, capability.NewAliasExtractor(nil))

	p.Classifier = capability.NewClassifierChain(classifiers...)
	p.Extractor = capability.NewExtractorChain(extractors...)
	if planner.Len() > 0 {
		p.Decomposer = capability.NewLLMDecomposer(planner)
	}
	if synthesis.Len() > 0 {
		p.Synthesizer = capability.NewLLMSynthesizer(synthesis)
	}
	return p
}
