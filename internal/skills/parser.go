package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SkillFilename is the expected filename for skill definitions.
	SkillFilename = "SKILL.md"

	// ToolManifestFilename names the optional adjacent tool manifest.
	ToolManifestFilename = "tools.yaml"

	// FrontmatterDelimiter marks the beginning and end of YAML frontmatter.
	FrontmatterDelimiter = "---"
)

// ParseSkillFile parses a SKILL.md file and returns a Skill.
func ParseSkillFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseSkill(data, filepath.Dir(path))
}

// ParseSkill parses SKILL.md content and returns a Skill.
func ParseSkill(data []byte, skillPath string) (*Skill, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var skill Skill
	if err := yaml.Unmarshal(frontmatter, &skill); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	if skill.Name == "" {
		skill.Name = filepath.Base(skillPath)
	}
	skill.Content = strings.TrimSpace(string(body))
	skill.Path = skillPath

	if err := ValidateSkill(&skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// splitFrontmatter separates YAML frontmatter from the markdown body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != FrontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			foundClosing = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !foundClosing {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}

	frontmatter := []byte(strings.Join(frontmatterLines, "\n"))
	body := []byte(strings.Join(bodyLines, "\n"))
	return frontmatter, body, nil
}

// ValidateSkill checks that a skill definition is usable.
func ValidateSkill(skill *Skill) error {
	if skill.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, r := range skill.Name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("name must be lowercase alphanumeric with hyphens: got %q", skill.Name)
		}
	}
	if skill.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

// toolManifest is the shape of the optional tools.yaml next to SKILL.md.
// Tool identifiers must name tools registered in the process tool table;
// no code is loaded at runtime.
type toolManifest struct {
	Tools []string `yaml:"tools"`
}

// ParseToolManifest reads a tools.yaml manifest and returns the declared
// tool identifiers.
func ParseToolManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m toolManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m.Tools, nil
}
