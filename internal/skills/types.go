// Package skills discovers and indexes skill definitions: named bundles of
// knowledge text, keyword triggers, and tool identifiers that can be
// activated per conversation.
package skills

// Skill is one discovered skill. Immutable after discovery.
type Skill struct {
	// Name is the unique skill identifier (lowercase, hyphens allowed).
	Name string `yaml:"name"`

	// Description explains what the skill does and when to activate it.
	Description string `yaml:"description"`

	// Keywords trigger automatic activation when found in a user message.
	Keywords []string `yaml:"keywords"`

	// Content is the markdown knowledge body injected into the system
	// prompt while the skill is active.
	Content string `yaml:"-"`

	// Tools lists the identifiers of tools this skill contributes.
	// Empty for knowledge-only skills.
	Tools []string `yaml:"-"`

	// Path is the directory the skill was discovered in.
	Path string `yaml:"-"`
}
