package sessions

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

func TestSQLiteHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := NewSQLiteHistory(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err = h.Append("private_1",
		&models.Message{ID: "1", Role: models.RoleUser, Content: "hello", CreatedAt: now},
		&models.Message{ID: "2", Role: models.RoleAssistant, Content: "hi", CreatedAt: now},
	)
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := h.Messages("private_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Role != models.RoleAssistant {
		t.Errorf("round trip mismatch: %+v", msgs)
	}

	// Threads do not leak into each other.
	if other, _ := h.Messages("private_2"); len(other) != 0 {
		t.Errorf("unexpected messages for other thread: %d", len(other))
	}
}

func TestSQLiteHistoryTrimsToCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := NewSQLiteHistory(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for _, content := range []string{"a", "b", "c"} {
		if err := h.Append("t", &models.Message{Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := h.Messages("t")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "b" || msgs[1].Content != "c" {
		t.Errorf("trim kept wrong messages: %+v", msgs)
	}
}

func TestSQLiteHistoryClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := NewSQLiteHistory(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.Append("t", &models.Message{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Clear("t"); err != nil {
		t.Fatal(err)
	}
	if msgs, _ := h.Messages("t"); len(msgs) != 0 {
		t.Errorf("history not cleared: %d messages", len(msgs))
	}
}
