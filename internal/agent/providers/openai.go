// Package providers implements the model backends behind the agent's
// Provider interface.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pe200012/llmq-horizon/internal/agent"
	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

// OpenAIProvider talks to the OpenAI chat completions API or any
// OpenAI-compatible endpoint when a base URL is configured.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for model. baseURL may be empty for
// the default endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Invoke(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertToOpenAIMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response")
	}
	choice := resp.Choices[0]

	msg := &models.Message{
		ID:           resp.ID,
		Role:         models.RoleAssistant,
		Content:      choice.Message.Content,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		CreatedAt:    time.Now(),
	}
	for _, tc := range choice.Message.ToolCalls {
		call := models.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		}
		if !json.Valid(call.Input) {
			call.Invalid = true
			call.Error = fmt.Sprintf("tool %s: arguments are not valid JSON", tc.Function.Name)
		}
		msg.ToolCalls = append(msg.ToolCalls, call)
	}

	return &agent.CompletionResponse{Message: msg}, nil
}

func mapOpenAIFinishReason(reason openai.FinishReason) models.FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return models.FinishStop
	case openai.FinishReasonToolCalls:
		return models.FinishToolUse
	case openai.FinishReasonLength:
		return models.FinishLength
	case openai.FinishReasonContentFilter:
		return models.FinishSafety
	default:
		return models.FinishUnknown
	}
}

func convertToOpenAIMessages(system string, msgs []*models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			out = append(out, oaiMsg)

		case models.RoleTool:
			// One message per result, linked by tool call id.
			for _, tr := range msg.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}

		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return out
}

func convertToOpenAITools(ts []tools.Tool) []openai.Tool {
	out := make([]openai.Tool, len(ts))
	for i, tool := range ts {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			// A broken schema on one tool must not sink the rest.
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schema,
			},
		}
	}
	return out
}
