package skills

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is an immutable index of discovered skills. It is built once at
// startup and safe for concurrent reads without locking.
type Registry struct {
	byName map[string]*Skill
	names  []string
}

// NewRegistry builds a registry from discovered skills. Later duplicates of
// a name replace earlier ones.
func NewRegistry(discovered []*Skill) *Registry {
	byName := make(map[string]*Skill, len(discovered))
	for _, s := range discovered {
		byName[s.Name] = s
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{byName: byName, names: names}
}

// Get returns a skill by name.
func (r *Registry) Get(name string) (*Skill, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Has reports whether a skill with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns all registered skill names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered skills.
func (r *Registry) Len() int { return len(r.byName) }

// ToolsFor returns the deduplicated union of tool identifiers declared by
// the given active skills. Unknown skill names are ignored: skills can be
// toggled from free-form model output, so leniency is deliberate.
func (r *Registry) ToolsFor(active []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range active {
		skill, ok := r.byName[name]
		if !ok {
			continue
		}
		for _, tool := range skill.Tools {
			if _, dup := seen[tool]; dup {
				continue
			}
			seen[tool] = struct{}{}
			out = append(out, tool)
		}
	}
	sort.Strings(out)
	return out
}

// ContentFor returns the concatenated knowledge text of the given active
// skills, each block preceded by a skill header. Unknown names are ignored.
func (r *Registry) ContentFor(active []string) string {
	var parts []string
	for _, name := range active {
		skill, ok := r.byName[name]
		if !ok || skill.Content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Skill: %s ---\n%s", name, skill.Content))
	}
	return strings.Join(parts, "\n\n")
}

// MatchKeywords scans text (case-folded) against every skill's keyword list
// and returns the names of matching skills.
func (r *Registry) MatchKeywords(text string) []string {
	lowered := strings.ToLower(text)
	var matched []string
	for _, name := range r.names {
		skill := r.byName[name]
		for _, kw := range skill.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}

// Catalog renders a one-line-per-skill description of the registry marking
// each skill active or inactive, for injection into the system prompt.
func (r *Registry) Catalog(active []string) string {
	activeSet := make(map[string]struct{}, len(active))
	for _, name := range active {
		activeSet[name] = struct{}{}
	}

	var b strings.Builder
	for _, name := range r.names {
		skill := r.byName[name]
		status := "inactive"
		if _, ok := activeSet[name]; ok {
			status = "active"
		}
		fmt.Fprintf(&b, "- %s [%s]: %s\n", name, status, skill.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
