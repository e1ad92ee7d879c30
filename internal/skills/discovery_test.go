package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, dir, frontmatter, body string, manifest string) {
	t.Helper()
	skillDir := filepath.Join(root, dir)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\n" + frontmatter + "---\n" + body
	if err := os.WriteFile(filepath.Join(skillDir, SkillFilename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(skillDir, ToolManifestFilename), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()

	writeSkill(t, root, "weather",
		"name: weather\ndescription: Weather lookups.\nkeywords: [weather]\n",
		"Knowledge.\n",
		"tools:\n  - weather_query\n")
	writeSkill(t, root, "notes",
		"name: notes\ndescription: Knowledge only.\n",
		"Some notes.\n",
		"")

	// A directory without SKILL.md is skipped.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	// A broken skill is skipped, not fatal.
	writeSkill(t, root, "broken", "name: [\n", "", "")

	reg, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (%v)", reg.Len(), reg.Names())
	}

	weather, ok := reg.Get("weather")
	if !ok {
		t.Fatal("weather not discovered")
	}
	if len(weather.Tools) != 1 || weather.Tools[0] != "weather_query" {
		t.Errorf("weather.Tools = %v", weather.Tools)
	}

	notes, ok := reg.Get("notes")
	if !ok {
		t.Fatal("notes not discovered")
	}
	if len(notes.Tools) != 0 {
		t.Errorf("knowledge-only skill has tools: %v", notes.Tools)
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	reg, err := Discover(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("missing directory should not be an error: %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}
