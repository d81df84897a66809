package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
	"github.com/ntclick/ai-research-roma/pkg/agent/middleware/resilience/circuit"
	"github.com/ntclick/ai-research-roma/pkg/config"
)

type stubBuilder struct {
	calls    []string
	complete func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)
}

func (s *stubBuilder) build(provider, credential, model string) (llm.LLMClient, error) {
	s.calls = append(s.calls, provider+"|"+credential+"|"+model)
	return llm.WrapClient(s.complete, func() string { return model }), nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Resilience.Retry.MaxAttempts = 2
	cfg.Resilience.Retry.InitialDelay = config.Duration(1)
	cfg.Resilience.Retry.MaxDelay = config.Duration(1)
	cfg.Resilience.CircuitBreaker.FailureThreshold = 1
	return *cfg
}

func TestNewRawClient(t *testing.T) {
	for _, provider := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle, config.ProviderOllama} {
		client, err := NewRawClient(provider, "cred", "model-x")
		require.NoError(t, err, provider)
		assert.NotNil(t, client)
	}
	_, err := NewRawClient("nope", "cred", "m")
	assert.Error(t, err)
}

func TestCreateClientForRole(t *testing.T) {
	t.Setenv(config.EnvGoogleAPIKey, "gemini-key")
	t.Setenv(config.EnvOpenAIAPIKey, "openai-key")

	stub := &stubBuilder{complete: func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: "ok"}, nil
	}}
	factory := NewLLMClientFactory(testConfig(), nil).WithRawClientBuilder(stub.build)

	primary, err := factory.CreateClient(RolePrimary)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPrimaryModel, primary.GetModelName())

	secondary, err := factory.CreateClient(RoleSecondary)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSecondaryModel, secondary.GetModelName())

	assert.Equal(t, []string{
		"google|gemini-key|gemini-2.5-flash",
		"openai|openai-key|gpt-4.1-mini",
	}, stub.calls)

	resp, err := primary.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	_, err = factory.CreateClient(Role("bogus"))
	assert.Error(t, err)
}

func TestCreateClientMissingKey(t *testing.T) {
	t.Setenv(config.EnvAnthropicAPIKey, "")
	factory := NewLLMClientFactory(testConfig(), nil)

	_, err := factory.CreateClientForModel("claude-sonnet-4-5")
	assert.ErrorContains(t, err, "API key")
}

func TestChainRetriesThenOpensCircuit(t *testing.T) {
	t.Setenv(config.EnvGoogleAPIKey, "k")

	calls := 0
	stub := &stubBuilder{complete: func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		calls++
		return llm.CompletionResponse{}, errors.New("503 service unavailable")
	}}
	factory := NewLLMClientFactory(testConfig(), nil).WithRawClientBuilder(stub.build)

	client, err := factory.CreateClient(RolePrimary)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("q")}))
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, circuit.Open, factory.BreakerState(config.ProviderGoogle))

	_, err = client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("q")}))
	var circuitErr *circuit.Error
	assert.ErrorAs(t, err, &circuitErr)
	assert.Equal(t, 2, calls)
}
