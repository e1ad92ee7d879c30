package core

import (
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/internal/tools"
)

// Options configures the built-in tool set.
type Options struct {
	// TavilyAPIKey enables the web_search tool when set.
	TavilyAPIKey string

	// SearchEndpoint overrides the search API endpoint (tests).
	SearchEndpoint string

	// GrepRoot is the directory the grep tool is confined to. Defaults to
	// the process working directory.
	GrepRoot string
}

// RegisterAll registers every core tool with the registry. skill_setup is
// always registered; it is the mandatory member of every resolved tool set.
func RegisterAll(registry *tools.Registry, skillReg *skills.Registry, opts Options) {
	if opts.GrepRoot == "" {
		opts.GrepRoot = "."
	}

	todoStore := NewTodoStore()

	registry.Register(NewSkillSetupTool(skillReg))
	registry.Register(NewTodoWriteTool(todoStore))
	registry.Register(NewTodoReadTool(todoStore))
	registry.Register(NewWebSearchTool(opts.TavilyAPIKey, opts.SearchEndpoint))
	registry.Register(NewWebFetchTool())
	registry.Register(NewGrepTool(opts.GrepRoot))
}
