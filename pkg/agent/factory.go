// Package agent builds LLM clients for each reasoning role with the resilience
// and metrics middleware chain applied.
package agent

import (
	"fmt"
	"sync"

	"github.com/ntclick/ai-research-roma/pkg/agent/internal/llmimpl/anthropic"
	"github.com/ntclick/ai-research-roma/pkg/agent/internal/llmimpl/google"
	"github.com/ntclick/ai-research-roma/pkg/agent/internal/llmimpl/ollama"
	"github.com/ntclick/ai-research-roma/pkg/agent/internal/llmimpl/openaiofficial"
	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/metrics"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/circuit"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/retry"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/timeout"
	"github.com/ntclick/ai-research-roma/pkg/config"
	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// Role names the job an LLM client is built for.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleRouter    Role = "router"
	RolePlanner   Role = "planner"
	RoleSynthesis Role = "synthesis"
)

// RawClientBuilder creates an unwrapped provider client.
type RawClientBuilder func(provider, credential, model string) (llm.LLMClient, error)

// LLMClientFactory creates LLM clients with properly configured middleware chains.
// Circuit breakers are shared per provider across every client the factory builds.
type LLMClientFactory struct {
	config          config.Config
	metricsRecorder metrics.Recorder
	logger          *logx.Logger
	buildRaw        RawClientBuilder

	mu              sync.Mutex
	circuitBreakers map[string]circuit.Breaker
}

// NewLLMClientFactory creates a factory. A nil recorder disables LLM metrics.
func NewLLMClientFactory(cfg config.Config, recorder metrics.Recorder) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &LLMClientFactory{
		config:          cfg,
		metricsRecorder: recorder,
		logger:          logx.NewLogger("llm"),
		buildRaw:        NewRawClient,
		circuitBreakers: make(map[string]circuit.Breaker),
	}
}

// WithRawClientBuilder replaces provider client construction. Used by tests.
func (f *LLMClientFactory) WithRawClientBuilder(builder RawClientBuilder) *LLMClientFactory {
	f.buildRaw = builder
	return f
}

// ModelFor returns the configured model for a role.
func (f *LLMClientFactory) ModelFor(role Role) (string, error) {
	m := f.config.Models
	switch role {
	case RolePrimary:
		return m.Primary, nil
	case RoleSecondary:
		return m.Secondary, nil
	case RoleRouter:
		return m.Router, nil
	case RolePlanner:
		return m.Planner, nil
	case RoleSynthesis:
		return m.Synthesis, nil
	default:
		return "", fmt.Errorf("unsupported role: %s", role)
	}
}

// CreateClient creates a client for role with the full middleware chain.
func (f *LLMClientFactory) CreateClient(role Role) (llm.LLMClient, error) {
	model, err := f.ModelFor(role)
	if err != nil {
		return nil, err
	}
	return f.CreateClientForModel(model)
}

// CreateClientForModel creates a client for an explicit model name.
// The credential is looked up from the secrets file, then the environment.
func (f *LLMClientFactory) CreateClientForModel(modelName string) (llm.LLMClient, error) {
	provider, err := config.GetModelProvider(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", modelName, err)
	}

	credential, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	rawClient, err := f.buildRaw(provider, credential, modelName)
	if err != nil {
		return nil, err
	}

	res := f.config.Resilience
	retryPolicy := retry.NewPolicy(retry.Config{
		MaxAttempts:   res.Retry.MaxAttempts,
		InitialDelay:  res.Retry.InitialDelay.Std(),
		MaxDelay:      res.Retry.MaxDelay.Std(),
		BackoffFactor: res.Retry.BackoffFactor,
		Jitter:        res.Retry.Jitter,
	}, nil)

	// Metrics -> CircuitBreaker -> Retry -> Timeout -> RawClient
	return llm.Chain(rawClient,
		metrics.Middleware(f.metricsRecorder, nil, f.logger),
		circuit.Middleware(f.breakerFor(provider)),
		retry.Middleware(retryPolicy),
		timeout.Middleware(res.Timeout.Std()),
	), nil
}

// BreakerState reports the circuit state for a provider.
func (f *LLMClientFactory) BreakerState(provider string) circuit.State {
	return f.breakerFor(provider).GetState()
}

func (f *LLMClientFactory) breakerFor(provider string) circuit.Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.circuitBreakers[provider]; ok {
		return b
	}
	cb := f.config.Resilience.CircuitBreaker
	b := circuit.New(circuit.Config{
		FailureThreshold: cb.FailureThreshold,
		SuccessThreshold: cb.SuccessThreshold,
		Timeout:          cb.Timeout.Std(),
	})
	f.circuitBreakers[provider] = b
	return b
}

// NewRawClient builds the SDK-backed client for a provider.
// For Ollama the credential is the host URL.
func NewRawClient(provider, credential, model string) (llm.LLMClient, error) {
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(credential, model), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(credential, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(credential, model), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(credential, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
