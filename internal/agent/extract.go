package agent

import (
	"strings"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

// Outcome classifies the final message of a turn.
type Outcome int

const (
	// OutcomeReply is a normal text reply.
	OutcomeReply Outcome = iota
	// OutcomeToolCallFailed means the model produced a malformed tool
	// call. The conversation is recoverable, so the session stays.
	OutcomeToolCallFailed
	// OutcomeSafetyBlocked means the reply was withheld by the provider's
	// safety policy.
	OutcomeSafetyBlocked
	// OutcomeEmpty means the model produced nothing usable.
	OutcomeEmpty
	// OutcomeNotUnderstood is the terminal fallback for shapes with no
	// extractable content.
	OutcomeNotUnderstood
)

// Extraction is the interpreted result of a turn.
type Extraction struct {
	Outcome Outcome

	// Text is the reply text for OutcomeReply.
	Text string

	// ErrorDetail carries the first malformed-call detail for
	// OutcomeToolCallFailed, possibly empty.
	ErrorDetail string

	// DeleteSession is set when the conversation state should be
	// discarded so the next message starts fresh.
	DeleteSession bool
}

// Extract interprets the last message a turn produced.
func Extract(final *models.Message) Extraction {
	if final == nil {
		return Extraction{Outcome: OutcomeEmpty, DeleteSession: true}
	}

	if invalid := final.InvalidToolCalls(); len(invalid) > 0 {
		return Extraction{Outcome: OutcomeToolCallFailed, ErrorDetail: invalid[0].Error}
	}

	if final.Role == models.RoleAssistant && strings.TrimSpace(final.Content) == "" && len(final.ToolCalls) == 0 {
		if final.FinishReason == models.FinishSafety {
			return Extraction{Outcome: OutcomeSafetyBlocked, DeleteSession: true}
		}
		return Extraction{Outcome: OutcomeNotUnderstood, DeleteSession: true}
	}

	if text := strings.TrimSpace(final.Content); text != "" {
		return Extraction{Outcome: OutcomeReply, Text: text}
	}

	if final.Role == models.RoleTool && len(final.ToolResults) > 0 {
		parts := make([]string, 0, len(final.ToolResults))
		for _, tr := range final.ToolResults {
			if tr.Content != "" {
				parts = append(parts, tr.Content)
			}
		}
		if len(parts) > 0 {
			return Extraction{Outcome: OutcomeReply, Text: strings.TrimSpace(strings.Join(parts, "\n"))}
		}
	}

	return Extraction{Outcome: OutcomeNotUnderstood}
}

// contextTooLargeMarkers are substrings providers use to report that the
// prompt exceeded the model's context window.
var contextTooLargeMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"prompt is too long",
	"input is too long",
	"context window",
}

// IsContextTooLarge reports whether err looks like an oversized-context
// failure rather than a generic one.
func IsContextTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextTooLargeMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
