// Package metrics provides metrics recording for LLM client operations.
package metrics

import (
	"context"
	"time"
)

// Request describes one completed LLM call.
type Request struct {
	Model            string
	Stage            string // route, extract, plan, answer, enhance, synthesize, social
	SessionID        string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Success          bool
	ErrorType        string
	Duration         time.Duration
}

// Recorder defines the interface for recording LLM operation metrics.
type Recorder interface {
	ObserveRequest(r Request)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveRequest(Request) {}

// multiRecorder fans a request out to several recorders.
type multiRecorder []Recorder

// Multi combines recorders; each observes every request.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) ObserveRequest(r Request) {
	for _, rec := range m {
		rec.ObserveRequest(r)
	}
}

type sessionKey struct{}

// WithSession tags ctx so LLM calls made on its behalf are attributed to sessionID.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session ID stored by WithSession, or "".
func SessionFrom(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}
