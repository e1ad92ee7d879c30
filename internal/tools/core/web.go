package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pe200012/llmq-horizon/internal/tools"
)

const (
	fetchMaxBody   = 2 << 20
	fetchMaxOutput = 5000
	searchMaxHits  = 5
)

// WebSearchTool queries a Tavily-compatible search API.
type WebSearchTool struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewWebSearchTool creates a web_search tool. endpoint defaults to the
// public Tavily API when empty.
func NewWebSearchTool(apiKey, endpoint string) *WebSearchTool {
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}
	return &WebSearchTool{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for information. Returns result URLs with content snippets."
}

func (t *WebSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query."}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Errorf("invalid parameters: %v", err), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return tools.Errorf("query is required"), nil
	}

	payload, _ := json.Marshal(map[string]any{
		"api_key":     t.apiKey,
		"query":       in.Query,
		"max_results": searchMaxHits,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return tools.Errorf("search error: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return tools.Errorf("search error: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tools.Errorf("search error: status %d", resp.StatusCode), nil
	}

	var body struct {
		Results []struct {
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, fetchMaxBody)).Decode(&body); err != nil {
		return tools.Errorf("search error: %v", err), nil
	}
	if len(body.Results) == 0 {
		return &tools.Result{Content: "No results found."}, nil
	}

	var b strings.Builder
	for _, res := range body.Results {
		fmt.Fprintf(&b, "### %s\n%s\n\n", res.URL, res.Content)
	}
	return &tools.Result{Content: strings.TrimSpace(b.String())}, nil
}

// WebFetchTool fetches a URL and reduces the HTML to readable text.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool creates a web_fetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its content as plain text."
}

func (t *WebFetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch."}
		},
		"required": ["url"]
	}`)
}

var (
	junkTagRe = regexp.MustCompile(`(?is)<(script|style|nav|footer)[^>]*>.*?</\s*(script|style|nav|footer)\s*>`)
	anyTagRe  = regexp.MustCompile(`(?s)<[^>]*>`)
)

func (t *WebFetchTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Errorf("invalid parameters: %v", err), nil
	}
	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return tools.Errorf("url must be http or https"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return tools.Errorf("fetch error: %v", err), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 HorizonBot")

	resp, err := t.client.Do(req)
	if err != nil {
		return tools.Errorf("fetch error: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tools.Errorf("fetch error: status %d", resp.StatusCode), nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody))
	if err != nil {
		return tools.Errorf("fetch error: %v", err), nil
	}

	content := StripHTML(string(raw))
	if runes := []rune(content); len(runes) > fetchMaxOutput {
		content = string(runes[:fetchMaxOutput]) + "\n...(truncated)"
	}
	return &tools.Result{Content: content}, nil
}

// StripHTML removes markup and collapses the remaining text to non-empty
// lines.
func StripHTML(html string) string {
	text := junkTagRe.ReplaceAllString(html, " ")
	text = anyTagRe.ReplaceAllString(text, "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
