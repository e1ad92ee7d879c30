// Package agent runs the per-turn pipeline: build context, resolve tools,
// invoke the model, execute requested tools, and interpret the final
// message.
package agent

import (
	"context"

	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

// Provider is a model backend the pipeline can invoke.
type Provider interface {
	// Name identifies the backend, e.g. "openai".
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Invoke sends one completion request and returns the assistant's
	// reply. Implementations block until the full response is available.
	Invoke(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one model invocation.
type CompletionRequest struct {
	// System is the full system prompt, skill catalog and knowledge
	// included.
	System string

	// Messages is the conversation in order, without system messages.
	Messages []*models.Message

	// Tools are the schemas bound for this invocation.
	Tools []tools.Tool

	// MaxTokens caps the response length when positive.
	MaxTokens int
}

// CompletionResponse is the model's reply to one invocation.
type CompletionResponse struct {
	// Message is an assistant message carrying content and/or tool calls.
	Message *models.Message
}
