package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pe200012/llmq-horizon/internal/tools"
)

// TodoItem is one entry on a conversation's todo list.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed
}

// TodoStore keeps per-thread todo lists in memory.
type TodoStore struct {
	mu    sync.Mutex
	lists map[string][]TodoItem
}

// NewTodoStore creates an empty todo store.
func NewTodoStore() *TodoStore {
	return &TodoStore{lists: make(map[string][]TodoItem)}
}

func (s *TodoStore) set(threadID string, items []TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[threadID] = items
}

func (s *TodoStore) get(threadID string) []TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists[threadID]
}

// TodoWriteTool replaces the conversation's todo list.
type TodoWriteTool struct {
	store *TodoStore
}

// NewTodoWriteTool creates a todo_write tool backed by store.
func NewTodoWriteTool(store *TodoStore) *TodoWriteTool {
	return &TodoWriteTool{store: store}
}

func (t *TodoWriteTool) Name() string { return "todo_write" }

func (t *TodoWriteTool) Description() string {
	return "Create or replace the todo list for this conversation."
}

func (t *TodoWriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"content": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]}
					},
					"required": ["content", "status"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Todos []TodoItem `json:"todos"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Errorf("invalid parameters: %v", err), nil
	}

	threadID := tools.ThreadIDFrom(ctx)
	if threadID == "" {
		return tools.Errorf("no active conversation"), nil
	}
	t.store.set(threadID, in.Todos)

	pending := 0
	for _, item := range in.Todos {
		if item.Status != "completed" {
			pending++
		}
	}
	return &tools.Result{Content: fmt.Sprintf("Updated todo list. %d tasks pending.", pending)}, nil
}

// TodoReadTool returns the conversation's todo list as JSON.
type TodoReadTool struct {
	store *TodoStore
}

// NewTodoReadTool creates a todo_read tool backed by store.
func NewTodoReadTool(store *TodoStore) *TodoReadTool {
	return &TodoReadTool{store: store}
}

func (t *TodoReadTool) Name() string { return "todo_read" }

func (t *TodoReadTool) Description() string {
	return "Read the current todo list for this conversation."
}

func (t *TodoReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	threadID := tools.ThreadIDFrom(ctx)
	if threadID == "" {
		return tools.Errorf("no active conversation"), nil
	}
	items := t.store.get(threadID)
	if items == nil {
		items = []TodoItem{}
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return tools.Errorf("encode todo list: %v", err), nil
	}
	return &tools.Result{Content: string(payload)}, nil
}
