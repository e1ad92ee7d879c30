package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Discover scans dir for skills. Each subdirectory containing a SKILL.md is
// a skill; an adjacent tools.yaml declares the tool identifiers the skill
// contributes. A missing manifest means a knowledge-only skill.
//
// Discovery runs once at process start; the returned registry is immutable.
func Discover(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "skills")

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		logger.Warn("skills directory does not exist", "path", dir)
		return NewRegistry(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var discovered []*Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		skillPath := filepath.Join(dir, entry.Name())
		skillFile := filepath.Join(skillPath, SkillFilename)
		if _, err := os.Stat(skillFile); os.IsNotExist(err) {
			continue
		}

		skill, err := ParseSkillFile(skillFile)
		if err != nil {
			logger.Warn("failed to parse skill", "path", skillPath, "error", err)
			continue
		}

		manifest := filepath.Join(skillPath, ToolManifestFilename)
		if _, err := os.Stat(manifest); err == nil {
			tools, err := ParseToolManifest(manifest)
			if err != nil {
				logger.Warn("failed to parse tool manifest", "path", manifest, "error", err)
			} else {
				skill.Tools = tools
			}
		}

		discovered = append(discovered, skill)
		logger.Debug("discovered skill",
			"name", skill.Name,
			"keywords", len(skill.Keywords),
			"tools", len(skill.Tools))
	}

	logger.Info("discovered skills", "count", len(discovered), "path", dir)
	return NewRegistry(discovered), nil
}
