package commands

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/sessions"
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

type fakeControls struct {
	mu         sync.Mutex
	processing bool
	isolation  bool
	chunking   bool
}

func (c *fakeControls) SetProcessing(v bool) { c.mu.Lock(); defer c.mu.Unlock(); c.processing = v }
func (c *fakeControls) Processing() bool     { c.mu.Lock(); defer c.mu.Unlock(); return c.processing }
func (c *fakeControls) SetIsolation(v bool)  { c.mu.Lock(); defer c.mu.Unlock(); c.isolation = v }
func (c *fakeControls) Isolation() bool      { c.mu.Lock(); defer c.mu.Unlock(); return c.isolation }
func (c *fakeControls) SetChunking(v bool)   { c.mu.Lock(); defer c.mu.Unlock(); c.chunking = v }
func (c *fakeControls) Chunking() bool       { c.mu.Lock(); defer c.mu.Unlock(); return c.chunking }

func newTestHandler(skillList ...*skills.Skill) (*Handler, *sessions.Manager, *fakeControls) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := sessions.NewManager(config.SessionConfig{
		CleanupInterval:   600 * time.Second,
		ProcessingTimeout: 60 * time.Second,
		LockTimeout:       time.Second,
	}, nil, logger, nil)
	controls := &fakeControls{processing: true, isolation: true}
	return NewHandler(mgr, skills.NewRegistry(skillList), controls, logger), mgr, controls
}

func groupEvent() *models.Event {
	return &models.Event{GroupID: "7", UserID: "9", Superuser: true}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		text string
		args string
		ok   bool
	}{
		{"chat clear", "clear", true},
		{"/chat group true", "group true", true},
		{"chat", "", true},
		{"chatter hello", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		args, ok := Match(tt.text)
		if ok != tt.ok || args != tt.args {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.text, args, ok, tt.args, tt.ok)
		}
	}
}

func TestExecuteClear(t *testing.T) {
	h, mgr, _ := newTestHandler()
	mgr.GetOrCreate("private_1")
	mgr.GetOrCreate("private_2")

	got := h.Execute(groupEvent(), "clear")
	if !strings.Contains(got, "2") {
		t.Errorf("got %q", got)
	}
	if mgr.Len() != 0 {
		t.Errorf("Len = %d", mgr.Len())
	}
}

func TestExecuteUpDown(t *testing.T) {
	h, _, controls := newTestHandler()

	h.Execute(groupEvent(), "down")
	if controls.Processing() {
		t.Error("processing still enabled after down")
	}
	h.Execute(groupEvent(), "up")
	if !controls.Processing() {
		t.Error("processing still disabled after up")
	}
}

func TestExecuteGroupTogglePurgesOldShape(t *testing.T) {
	h, mgr, controls := newTestHandler()
	controls.SetIsolation(false)
	mgr.GetOrCreate("group_7")
	mgr.GetOrCreate("group_8")
	mgr.GetOrCreate("group_7_9")
	mgr.GetOrCreate("private_9")

	// Enabling isolation purges this group's per-user keys; the shared key
	// and other groups stay.
	got := h.Execute(groupEvent(), "group true")
	if !controls.Isolation() {
		t.Error("isolation not enabled")
	}
	if !strings.Contains(got, "1 sessions purged") {
		t.Errorf("got %q", got)
	}
	if mgr.Len() != 3 {
		t.Errorf("Len = %d, want 3", mgr.Len())
	}
}

func TestExecuteGroupToggleFromPrivate(t *testing.T) {
	h, mgr, _ := newTestHandler()
	mgr.GetOrCreate("private_1")
	mgr.GetOrCreate("group_7")

	ev := &models.Event{UserID: "1", Superuser: true}
	h.Execute(ev, "group false")
	if mgr.Len() != 1 {
		t.Errorf("Len = %d, want group session kept", mgr.Len())
	}
}

func TestExecuteChunk(t *testing.T) {
	h, _, controls := newTestHandler()

	h.Execute(groupEvent(), "chunk true")
	if !controls.Chunking() {
		t.Error("chunking not enabled")
	}
	got := h.Execute(groupEvent(), "chunk nope")
	if !strings.Contains(got, "true or false") {
		t.Errorf("got %q", got)
	}
}

func TestExecuteSkill(t *testing.T) {
	h, mgr, _ := newTestHandler(&skills.Skill{Name: "weather", Description: "d"})
	ev := groupEvent()

	if got := h.Execute(ev, "skill load weather"); !strings.Contains(got, "loaded") {
		t.Errorf("got %q", got)
	}
	session := mgr.GetOrCreate("group_7_9")
	if active := session.ActiveSkills(); len(active) != 1 || active[0] != "weather" {
		t.Errorf("active = %v", active)
	}

	if got := h.Execute(ev, "skill load weather"); !strings.Contains(got, "already active") {
		t.Errorf("got %q", got)
	}
	if got := h.Execute(ev, "skill load nosuch"); !strings.Contains(got, "not found") {
		t.Errorf("got %q", got)
	}
	if got := h.Execute(ev, "skill unload weather"); !strings.Contains(got, "unloaded") {
		t.Errorf("got %q", got)
	}
	if got := h.Execute(ev, "skill unload weather"); !strings.Contains(got, "wasn't active") {
		t.Errorf("got %q", got)
	}
	if got := h.Execute(ev, "skill list"); !strings.Contains(got, "Available: weather") {
		t.Errorf("got %q", got)
	}
}

func TestExecuteUnknown(t *testing.T) {
	h, _, _ := newTestHandler()
	if got := h.Execute(groupEvent(), "fly"); !strings.Contains(got, "Commands:") {
		t.Errorf("got %q", got)
	}
	if got := h.Execute(groupEvent(), ""); !strings.Contains(got, "Commands:") {
		t.Errorf("got %q", got)
	}
}
