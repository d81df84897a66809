package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newWithClock(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: time.Minute}, clock.now)

	assert.Equal(t, Closed, b.GetState())
	b.Record(false)
	assert.Equal(t, Closed, b.GetState())
	b.Record(false)
	assert.Equal(t, Open, b.GetState())
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, HalfOpen, b.GetState())

	b.Record(true)
	assert.Equal(t, HalfOpen, b.GetState())
	b.Record(true)
	assert.Equal(t, Closed, b.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newWithClock(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second}, clock.now)

	b.Record(false)
	clock.advance(time.Second)
	require.True(t, b.Allow())
	b.Record(false)
	assert.Equal(t, Open, b.GetState())

	b.Reset()
	assert.Equal(t, Closed, b.GetState())
	assert.True(t, b.Allow())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})
	b.Record(false)
	b.Record(true)
	b.Record(false)
	assert.Equal(t, Closed, b.GetState())
}

func TestMiddlewareRejectsWhenOpen(t *testing.T) {
	calls := 0
	base := llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			calls++
			return llm.CompletionResponse{}, errors.New("boom")
		},
		func() string { return "m" },
	)
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})
	client := Middleware(b)(base)

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	assert.EqualError(t, err, "boom")

	_, err = client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	var circuitErr *Error
	require.ErrorAs(t, err, &circuitErr)
	assert.Equal(t, Open, circuitErr.State)
	assert.Equal(t, "circuit breaker is OPEN", err.Error())
	assert.Equal(t, 1, calls)
}
