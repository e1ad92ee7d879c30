package core

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pe200012/llmq-horizon/internal/tools"
)

const grepMaxMatches = 50

// GrepTool searches for text patterns in files below a fixed root.
type GrepTool struct {
	root string
}

// NewGrepTool creates a grep tool confined to root.
func NewGrepTool(root string) *GrepTool {
	return &GrepTool{root: root}
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search for a regex pattern in files. Returns matching lines with file paths and line numbers."
}

func (t *GrepTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regex pattern to search for."},
			"path": {"type": "string", "description": "Subdirectory to search in, relative to the workspace."},
			"include": {"type": "string", "description": "Glob for file names, e.g. \"*.go\"."}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Include string `json:"include"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Errorf("invalid parameters: %v", err), nil
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return tools.Errorf("invalid pattern: %v", err), nil
	}

	searchRoot := t.root
	if in.Path != "" && in.Path != "." {
		if strings.Contains(in.Path, "..") || filepath.IsAbs(in.Path) {
			return tools.Errorf("invalid path, must stay within the workspace"), nil
		}
		searchRoot = filepath.Join(t.root, in.Path)
	}
	include := in.Include
	if include == "" {
		include = "*"
	}

	var matches []string
	truncated := false
	err = filepath.WalkDir(searchRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "node_modules" {
				return fs.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(include, d.Name()); !ok {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			rel, relErr := filepath.Rel(t.root, path)
			if relErr != nil {
				rel = path
			}
			matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, lineNo, strings.TrimSpace(line)))
			if len(matches) >= grepMaxMatches {
				truncated = true
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		return tools.Errorf("grep error: %v", err), nil
	}

	if len(matches) == 0 {
		return &tools.Result{Content: "No matches found."}, nil
	}
	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n...(truncated at %d matches)", grepMaxMatches)
	}
	return &tools.Result{Content: out}, nil
}
