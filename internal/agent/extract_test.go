package agent

import (
	"errors"
	"testing"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		final      *models.Message
		outcome    Outcome
		text       string
		wantDelete bool
	}{
		{
			name:    "plain reply trimmed",
			final:   &models.Message{Role: models.RoleAssistant, Content: "  hello  "},
			outcome: OutcomeReply,
			text:    "hello",
		},
		{
			name: "malformed tool call",
			final: &models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{
				{Name: "grep", Invalid: true, Error: "bad json"},
			}},
			outcome: OutcomeToolCallFailed,
		},
		{
			name:       "safety blocked",
			final:      &models.Message{Role: models.RoleAssistant, FinishReason: models.FinishSafety},
			outcome:    OutcomeSafetyBlocked,
			wantDelete: true,
		},
		{
			name:       "empty assistant content",
			final:      &models.Message{Role: models.RoleAssistant, Content: "   "},
			outcome:    OutcomeNotUnderstood,
			wantDelete: true,
		},
		{
			name: "tool result content",
			final: &models.Message{Role: models.RoleTool, ToolResults: []models.ToolResult{
				{Content: "result text"},
			}},
			outcome: OutcomeReply,
			text:    "result text",
		},
		{
			name:       "nil final short-circuits",
			final:      nil,
			outcome:    OutcomeEmpty,
			wantDelete: true,
		},
		{
			name:    "empty tool result falls back",
			final:   &models.Message{Role: models.RoleTool, ToolResults: []models.ToolResult{{}}},
			outcome: OutcomeNotUnderstood,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.final)
			if got.Outcome != tt.outcome {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.outcome)
			}
			if got.Text != tt.text {
				t.Errorf("Text = %q, want %q", got.Text, tt.text)
			}
			if got.DeleteSession != tt.wantDelete {
				t.Errorf("DeleteSession = %v, want %v", got.DeleteSession, tt.wantDelete)
			}
		})
	}
}

func TestExtractKeepsSessionOnToolCallFailure(t *testing.T) {
	got := Extract(&models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{
		{Invalid: true, Error: "detail"},
	}})
	if got.DeleteSession {
		t.Error("malformed tool calls should keep the session")
	}
	if got.ErrorDetail != "detail" {
		t.Errorf("ErrorDetail = %q", got.ErrorDetail)
	}
}

func TestIsContextTooLarge(t *testing.T) {
	if !IsContextTooLarge(errors.New("400: maximum context length is 8192 tokens")) {
		t.Error("context-length error not recognized")
	}
	if !IsContextTooLarge(errors.New("prompt is too long: 250000 tokens")) {
		t.Error("anthropic-style error not recognized")
	}
	if IsContextTooLarge(errors.New("connection refused")) {
		t.Error("generic error misclassified")
	}
	if IsContextTooLarge(nil) {
		t.Error("nil error misclassified")
	}
}
