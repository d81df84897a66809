package metrics

import (
	"sync"
	"time"
)

// InternalRecorder aggregates usage per session in memory.
// It backs /api/usage when no Prometheus server is configured.
type InternalRecorder struct {
	sessions map[string]*SessionUsage
	mu       sync.RWMutex
}

// SessionUsage is the aggregated LLM usage of one session.
type SessionUsage struct {
	SessionID        string    `json:"session_id"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	ErrorCount       int64     `json:"error_count"`
	TotalCost        float64   `json:"total_cost_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewInternalRecorder creates an empty in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{sessions: make(map[string]*SessionUsage)}
}

// ObserveRequest adds a request to its session's totals. Untagged requests are ignored.
func (r *InternalRecorder) ObserveRequest(req Request) {
	if req.SessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	usage, exists := r.sessions[req.SessionID]
	if !exists {
		usage = &SessionUsage{SessionID: req.SessionID}
		r.sessions[req.SessionID] = usage
	}

	usage.RequestCount++
	if !req.Success {
		usage.ErrorCount++
	} else {
		usage.PromptTokens += int64(req.PromptTokens)
		usage.CompletionTokens += int64(req.CompletionTokens)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		usage.TotalCost += req.Cost
	}
	usage.LastUpdated = time.Now()
}

// GetSessionUsage returns a copy of the usage for sessionID, or nil.
func (r *InternalRecorder) GetSessionUsage(sessionID string) *SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if usage, exists := r.sessions[sessionID]; exists {
		copied := *usage
		return &copied
	}
	return nil
}

// Reset clears all aggregated usage.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*SessionUsage)
}
