package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// Usage is the aggregated LLM usage of one session as seen by Prometheus.
type Usage struct {
	SessionID        string            `json:"session_id"`
	PromptTokens     int64             `json:"prompt_tokens"`
	CompletionTokens int64             `json:"completion_tokens"`
	TotalTokens      int64             `json:"total_tokens"`
	TotalCost        float64           `json:"total_cost_usd"`
	ByModel          map[string]*Usage `json:"by_model,omitempty"`
}

// QueryService reads usage from a Prometheus server.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query service for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// GetSessionUsage sums token and cost counters for a session, overall and per model.
func (q *QueryService) GetSessionUsage(ctx context.Context, sessionID string) (*Usage, error) {
	usage := &Usage{SessionID: sessionID, ByModel: make(map[string]*Usage)}

	queries := []struct {
		expr  string
		apply func(u *Usage, v float64)
	}{
		{
			expr:  fmt.Sprintf(`sum by (model) (llm_tokens_total{session_id=%q, type="prompt"})`, sessionID),
			apply: func(u *Usage, v float64) { u.PromptTokens += int64(v) },
		},
		{
			expr:  fmt.Sprintf(`sum by (model) (llm_tokens_total{session_id=%q, type="completion"})`, sessionID),
			apply: func(u *Usage, v float64) { u.CompletionTokens += int64(v) },
		},
		{
			expr:  fmt.Sprintf(`sum by (model) (llm_costs_total{session_id=%q})`, sessionID),
			apply: func(u *Usage, v float64) { u.TotalCost += v },
		},
	}

	for _, query := range queries {
		result, _, err := q.queryAPI.Query(ctx, query.expr, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", query.expr, err)
		}
		vector, ok := result.(model.Vector)
		if !ok {
			continue
		}
		for _, sample := range vector {
			name := string(sample.Metric["model"])
			perModel, exists := usage.ByModel[name]
			if !exists {
				perModel = &Usage{SessionID: sessionID}
				usage.ByModel[name] = perModel
			}
			query.apply(perModel, float64(sample.Value))
			query.apply(usage, float64(sample.Value))
		}
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	for _, perModel := range usage.ByModel {
		perModel.TotalTokens = perModel.PromptTokens + perModel.CompletionTokens
	}
	return usage, nil
}
