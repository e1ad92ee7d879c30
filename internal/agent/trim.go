package agent

import "github.com/pe200012/llmq-horizon/pkg/models"

// TrimMessages reduces a transcript to at most budget messages. System
// messages are always kept and count against the budget; of the rest, the
// most recent window is kept, shrunk so it starts on a user message and
// ends on a user or tool message. A nil result means nothing conversational
// survived and the turn should not invoke the model.
func TrimMessages(msgs []*models.Message, budget int) []*models.Message {
	if budget <= 0 {
		return nil
	}

	var system, rest []*models.Message
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	remaining := budget - len(system)
	if remaining < 0 {
		remaining = 0
	}
	if len(rest) > remaining {
		rest = rest[len(rest)-remaining:]
	}

	for len(rest) > 0 && rest[0].Role != models.RoleUser {
		rest = rest[1:]
	}
	for len(rest) > 0 {
		last := rest[len(rest)-1]
		if last.Role == models.RoleUser || last.Role == models.RoleTool {
			break
		}
		rest = rest[:len(rest)-1]
	}
	if len(rest) == 0 {
		return nil
	}

	out := make([]*models.Message, 0, len(system)+len(rest))
	out = append(out, system...)
	return append(out, rest...)
}
