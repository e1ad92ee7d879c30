package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pe200012/llmq-horizon/internal/agent"
	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider for model. baseURL may be empty
// for the default endpoint.
func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Invoke(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  convertToAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToAnthropicTools(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	msg := &models.Message{
		ID:           resp.ID,
		Role:         models.RoleAssistant,
		FinishReason: mapStopReason(resp.StopReason),
		CreatedAt:    time.Now(),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			input, err := json.Marshal(block.Input)
			call := models.ToolCall{ID: block.ID, Name: block.Name, Input: input}
			if err != nil {
				call.Invalid = true
				call.Error = fmt.Sprintf("tool %s: %v", block.Name, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}

	return &agent.CompletionResponse{Message: msg}, nil
}

func mapStopReason(reason anthropic.StopReason) models.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return models.FinishStop
	case anthropic.StopReasonToolUse:
		return models.FinishToolUse
	case anthropic.StopReasonMaxTokens:
		return models.FinishLength
	case anthropic.StopReasonRefusal:
		return models.FinishSafety
	default:
		return models.FinishUnknown
	}
}

func convertToAnthropicMessages(msgs []*models.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					input = string(tc.Input)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case models.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, tr := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

func convertToAnthropicTools(ts []tools.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(ts))
	for _, tool := range ts {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			schema = anthropic.ToolInputSchemaParam{}
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description())
		}
		out = append(out, param)
	}
	return out
}
