package google

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/ntclick/ai-research-roma/pkg/agent/llm"
	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
)

func TestGetModelName(t *testing.T) {
	client := NewGeminiClientWithModel("test-key", "gemini-2.5-flash")

	if client.GetModelName() != "gemini-2.5-flash" {
		t.Errorf("expected model %q, got %q", "gemini-2.5-flash", client.GetModelName())
	}
}

func TestConvertMessagesToGemini(t *testing.T) {
	tests := []struct {
		name             string
		messages         []llm.CompletionMessage
		expectSystem     string
		expectContentLen int
		expectErr        bool
	}{
		{
			name:      "empty messages",
			messages:  []llm.CompletionMessage{},
			expectErr: true,
		},
		{
			name: "system message extracted",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleSystem, Content: "You are helpful"},
				{Role: llm.RoleUser, Content: "Hello"},
			},
			expectSystem:     "You are helpful",
			expectContentLen: 1,
		},
		{
			name: "user and assistant messages",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleUser, Content: "Hello"},
				{Role: llm.RoleAssistant, Content: "Hi there"},
			},
			expectContentLen: 2,
		},
		{
			name: "only system",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleSystem, Content: "rules"},
			},
			expectErr: true,
		},
		{
			name: "unknown role",
			messages: []llm.CompletionMessage{
				{Role: "tool", Content: "x"},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, system, err := convertMessagesToGemini(tt.messages)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if system != tt.expectSystem {
				t.Errorf("expected system %q, got %q", tt.expectSystem, system)
			}
			if len(contents) != tt.expectContentLen {
				t.Errorf("expected %d contents, got %d", tt.expectContentLen, len(contents))
			}
		})
	}
}

func TestAssistantRoleMapsToModel(t *testing.T) {
	contents, _, err := convertMessagesToGemini([]llm.CompletionMessage{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("expected role %q, got %q", genai.RoleModel, contents[1].Role)
	}
}

func TestGetStopReason(t *testing.T) {
	if getStopReason(nil) != "unknown" {
		t.Error("nil result should be unknown")
	}
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}},
	}
	if getStopReason(result) != "stop" {
		t.Errorf("unexpected stop reason %q", getStopReason(result))
	}
}

func TestCompleteRejectsBadMessages(t *testing.T) {
	client := NewGeminiClientWithModel("key", "gemini-2.5-flash")
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	if !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt) {
		t.Errorf("expected bad prompt error, got %v", err)
	}
}
