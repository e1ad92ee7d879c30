// Package models provides domain types shared across the Horizon bot.
package models

import (
	"encoding/json"
	"time"
)

// ChannelType identifies a messaging platform.
type ChannelType string

const (
	ChannelOneBot   ChannelType = "onebot"
	ChannelTelegram ChannelType = "telegram"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FinishReason describes why the model stopped generating.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishToolUse  FinishReason = "tool_use"
	FinishSafety   FinishReason = "safety"
	FinishLength   FinishReason = "length"
	FinishUnknown  FinishReason = ""
)

// Message is one entry in a conversation thread.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	// FinishReason is set on assistant messages when the provider reports one.
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ToolCall is a model request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`

	// Invalid marks a call the provider could not parse into a well-formed
	// tool invocation. Error carries the provider's detail when available.
	Invalid bool   `json:"invalid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolResult is the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// InvalidToolCalls returns the malformed tool calls on an assistant message.
func (m *Message) InvalidToolCalls() []ToolCall {
	var out []ToolCall
	for _, tc := range m.ToolCalls {
		if tc.Invalid {
			out = append(out, tc)
		}
	}
	return out
}
