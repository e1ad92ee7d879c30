// Package core implements the built-in tools that are available on every
// turn: skill toggling, todo tracking, web search/fetch, and file grep.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/internal/tools"
)

// SkillSetupTool lets the model enable or disable a skill for the current
// conversation. It is the mandatory member of every resolved tool set.
type SkillSetupTool struct {
	registry *skills.Registry
}

// NewSkillSetupTool creates the skill toggle tool over the skill registry.
func NewSkillSetupTool(registry *skills.Registry) *SkillSetupTool {
	return &SkillSetupTool{registry: registry}
}

func (t *SkillSetupTool) Name() string { return tools.SkillSetupToolName }

func (t *SkillSetupTool) Description() string {
	return "Enable or disable a skill when you need specialized knowledge or tools. " +
		"Enabled skills persist for the rest of the conversation."
}

func (t *SkillSetupTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["enable", "disable"]},
			"skill_name": {"type": "string", "description": "The skill to toggle."}
		},
		"required": ["action", "skill_name"]
	}`)
}

func (t *SkillSetupTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Action    string `json:"action"`
		SkillName string `json:"skill_name"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Errorf("invalid parameters: %v", err), nil
	}

	session := tools.SkillSessionFrom(ctx)
	if session == nil {
		return tools.Errorf("no active conversation"), nil
	}

	switch in.Action {
	case "enable":
		if !t.registry.Has(in.SkillName) {
			return tools.Errorf("skill %q not found. Available: %s",
				in.SkillName, strings.Join(t.registry.Names(), ", ")), nil
		}
		if !session.LoadSkill(in.SkillName) {
			return &tools.Result{Content: fmt.Sprintf("Skill %q is already enabled.", in.SkillName)}, nil
		}
		return &tools.Result{Content: fmt.Sprintf(
			"Skill %q enabled. Its knowledge will be injected on the next turn.", in.SkillName)}, nil
	case "disable":
		session.UnloadSkill(in.SkillName)
		return &tools.Result{Content: fmt.Sprintf("Skill %q disabled.", in.SkillName)}, nil
	default:
		return tools.Errorf("action must be 'enable' or 'disable'"), nil
	}
}
