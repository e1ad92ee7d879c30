// Package commands implements the superuser `chat` admin command.
package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pe200012/llmq-horizon/internal/sessions"
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

const usage = `Commands:
  chat clear              wipe all sessions
  chat group <bool>       toggle per-user group isolation
  chat down / chat up     disable / enable processing
  chat chunk <bool>       toggle chunked replies
  chat skill list|load <name>|unload <name>`

// Controls exposes the runtime flags the admin command mutates.
type Controls interface {
	SetProcessing(enabled bool)
	Processing() bool
	SetIsolation(isolated bool)
	Isolation() bool
	SetChunking(enabled bool)
	Chunking() bool
}

// Handler parses and executes admin commands.
type Handler struct {
	sessions *sessions.Manager
	skills   *skills.Registry
	controls Controls
	logger   *slog.Logger
}

// NewHandler creates an admin command handler.
func NewHandler(mgr *sessions.Manager, skillReg *skills.Registry, controls Controls, logger *slog.Logger) *Handler {
	return &Handler{sessions: mgr, skills: skillReg, controls: controls, logger: logger}
}

// Match reports whether text is a `chat` admin command and returns the
// argument remainder.
func Match(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"/chat", "chat"} {
		if text == prefix {
			return "", true
		}
		if rest, ok := strings.CutPrefix(text, prefix+" "); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// Execute runs one admin command and returns the user-visible result.
func (h *Handler) Execute(ev *models.Event, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return usage
	}
	command := strings.ToLower(fields[0])
	rest := fields[1:]

	h.logger.Info("admin command", "command", command, "user_id", ev.UserID)

	switch command {
	case "clear":
		n := h.sessions.Clear()
		return fmt.Sprintf("Cleared %d sessions.", n)

	case "group":
		return h.executeGroup(ev, rest)

	case "down":
		h.controls.SetProcessing(false)
		return "Chat processing disabled."

	case "up":
		h.controls.SetProcessing(true)
		return "Chat processing enabled."

	case "chunk":
		if len(rest) == 0 {
			return fmt.Sprintf("Chunked replies: %v", h.controls.Chunking())
		}
		enabled, err := parseBool(rest[0])
		if err != nil {
			return err.Error()
		}
		h.controls.SetChunking(enabled)
		if enabled {
			return "Chunked replies enabled."
		}
		return "Chunked replies disabled."

	case "skill":
		return h.executeSkill(ev, rest)

	default:
		return usage
	}
}

// executeGroup toggles isolation and purges the sessions whose key shape no
// longer matches the flag, scoped to the invoking context.
func (h *Handler) executeGroup(ev *models.Event, rest []string) string {
	if len(rest) == 0 {
		return fmt.Sprintf("Group isolation: %v", h.controls.Isolation())
	}
	isolated, err := parseBool(rest[0])
	if err != nil {
		return err.Error()
	}
	h.controls.SetIsolation(isolated)

	var removed int
	if ev.IsGroup() {
		prefix := "group_" + ev.GroupID
		if isolated {
			removed = h.sessions.RemoveWhere(func(id string) bool {
				return strings.HasPrefix(id, prefix+"_")
			}, "isolation_toggle")
		} else {
			removed = h.sessions.RemoveWhere(func(id string) bool {
				return id == prefix
			}, "isolation_toggle")
		}
	} else {
		removed = h.sessions.RemoveWhere(sessions.IsPrivateThread, "isolation_toggle")
	}

	state := "disabled"
	if isolated {
		state = "enabled"
	}
	return fmt.Sprintf("Group isolation %s, %d sessions purged.", state, removed)
}

func (h *Handler) executeSkill(ev *models.Event, rest []string) string {
	if len(rest) == 0 {
		return "Use: chat skill list | load <name> | unload <name>"
	}

	threadID := sessions.ThreadID(ev, h.controls.Isolation())
	session := h.sessions.GetOrCreate(threadID)

	switch strings.ToLower(rest[0]) {
	case "list":
		return fmt.Sprintf("Active: %s\nAvailable: %s",
			strings.Join(session.ActiveSkills(), ", "),
			strings.Join(h.skills.Names(), ", "))

	case "load":
		if len(rest) < 2 {
			return "Specify skill name."
		}
		name := rest[1]
		if !h.skills.Has(name) {
			return fmt.Sprintf("Skill %q not found.", name)
		}
		if !session.LoadSkill(name) {
			return fmt.Sprintf("Skill %q already active.", name)
		}
		return fmt.Sprintf("Skill %q loaded.", name)

	case "unload":
		if len(rest) < 2 {
			return "Specify skill name."
		}
		name := rest[1]
		if !session.UnloadSkill(name) {
			return fmt.Sprintf("Skill %q wasn't active.", name)
		}
		return fmt.Sprintf("Skill %q unloaded.", name)

	default:
		return "Use: chat skill list | load <name> | unload <name>"
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("expected true or false, got %q", s)
	}
}
