package session

import (
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/roma"
	"github.com/ntclick/ai-research-roma/pkg/utils"
)

// Envelope types.
const (
	TypeResearchResponse = "research_response"
	TypeError            = "error"
)

// ToolResearch is the only tool the service answers.
const ToolResearch = "research"

// Envelope is the response sent back to a client.
type Envelope struct {
	Type           string `json:"type"`
	Tool           string `json:"tool"`
	Content        string `json:"content"`
	Sender         string `json:"sender"`
	APISource      string `json:"api_source"`
	HasError       bool   `json:"has_error"`
	RetryAvailable bool   `json:"retry_available"`
	NeedsInput     bool   `json:"needs_input"`
	ImageURL       string `json:"image_url,omitempty"`
	RequestID      string `json:"request_id"`
	SubtaskCount   int    `json:"subtask_count,omitempty"`
}

// ErrorEnvelope builds an error response outside the engine, such as a
// rejected request.
func ErrorEnvelope(requestID, message string, retry bool) Envelope {
	return Envelope{
		Type:           TypeError,
		Tool:           ToolResearch,
		Content:        "❌ **Error:** " + message,
		Sender:         "ai",
		APISource:      "System",
		HasError:       true,
		RetryAvailable: retry,
		RequestID:      requestID,
	}
}

// BuildEnvelope converts an engine outcome into a client response.
// Aggregations show only their synthesis when one was produced.
func BuildEnvelope(out roma.Outcome, requestID string) Envelope {
	env := Envelope{Type: TypeResearchResponse, Tool: ToolResearch, Sender: "ai", RequestID: requestID}

	switch {
	case out.Aggregation != nil:
		agg := out.Aggregation
		env.APISource = roma.SourceAggregated
		env.SubtaskCount = agg.SubtaskCount
		env.Content = agg.Content
		if _, synthesis, found := strings.Cut(agg.Content, roma.SynthesisHeader); found && strings.TrimSpace(synthesis) != "" {
			env.Content = strings.TrimSpace(synthesis)
		}
		for _, r := range agg.Subresults {
			if r.OK && r.Payload != nil && r.Payload.ImageURL != "" {
				env.ImageURL = r.Payload.ImageURL
				break
			}
		}

	case out.Execution != nil && out.Execution.OK:
		r := out.Execution
		env.Content = r.Text()
		env.NeedsInput = r.NeedsInput
		if r.Payload != nil {
			env.APISource = r.Payload.Source
			env.ImageURL = r.Payload.ImageURL
		}

	case out.Execution != nil && out.Execution.Error != nil:
		env.Type = TypeError
		env.APISource = "ROMA"
		env.HasError = true
		env.RetryAvailable = out.Execution.Error.RetryAvailable()
		env.Content = "❌ **ROMA Error:** " + out.Execution.Error.Detail
		if env.RetryAvailable {
			env.Content += "\n\n🔄 **Retry available** - Click retry button to try again"
		}

	default:
		return ErrorEnvelope(requestID, "no result produced", true)
	}
	return env
}

// CoinOf returns the coin an outcome resolved, for later pronoun resolution.
func CoinOf(out roma.Outcome) string {
	if out.Execution != nil {
		return coinOfResult(*out.Execution)
	}
	if out.Aggregation != nil {
		for _, r := range out.Aggregation.Subresults {
			if coin := coinOfResult(r); coin != "" {
				return coin
			}
		}
	}
	return ""
}

func coinOfResult(r roma.ExecutionResult) string {
	if !r.OK {
		return ""
	}
	if r.Payload != nil {
		if id := utils.GetMapFieldOr(r.Payload.Structured, "id", ""); id != "" {
			return id
		}
	}
	return r.Identifier
}
