package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pe200012/llmq-horizon/internal/skills"
)

// SkillSetupToolName identifies the skill-toggling tool. It is always bound
// regardless of which skills are active.
const SkillSetupToolName = "skill_setup"

// Resolver maps an active-skill set to the concrete tools bound to a model
// invocation.
type Resolver struct {
	skills    *skills.Registry
	registry  *Registry
	mandatory []string
}

// NewResolver creates a resolver. mandatory lists tool names bound on every
// turn in addition to the skill-declared ones; SkillSetupToolName is always
// included.
func NewResolver(skillReg *skills.Registry, toolReg *Registry, mandatory []string) *Resolver {
	names := make([]string, 0, len(mandatory)+1)
	seen := map[string]struct{}{SkillSetupToolName: {}}
	names = append(names, SkillSetupToolName)
	for _, n := range mandatory {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return &Resolver{skills: skillReg, registry: toolReg, mandatory: names}
}

// Resolve returns the tools to bind for the given active skills: the union
// of each known skill's declared tools plus the mandatory set. Unknown skill
// names and tool identifiers with no registered implementation are skipped.
func (r *Resolver) Resolve(active []string) []Tool {
	names := make(map[string]struct{})
	for _, n := range r.skills.ToolsFor(active) {
		names[n] = struct{}{}
	}
	for _, n := range r.mandatory {
		names[n] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	out := make([]Tool, 0, len(sorted))
	for _, n := range sorted {
		if tool, ok := r.registry.Get(n); ok {
			out = append(out, tool)
		}
	}
	return out
}

// Execute runs a tool through the full registry, regardless of the set
// bound to the current invocation.
func (r *Resolver) Execute(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	return r.registry.Execute(ctx, name, params)
}
