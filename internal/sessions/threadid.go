package sessions

import (
	"fmt"
	"strings"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

// ThreadID derives the conversation key for an event. Group events map to
// group_{group}_{user} when per-user isolation is on, group_{group} when the
// whole group shares one conversation, and private chats to private_{user}.
func ThreadID(ev *models.Event, isolated bool) string {
	if ev.IsGroup() {
		if isolated {
			return fmt.Sprintf("group_%s_%s", ev.GroupID, ev.UserID)
		}
		return fmt.Sprintf("group_%s", ev.GroupID)
	}
	return fmt.Sprintf("private_%s", ev.UserID)
}

// IsPrivateThread reports whether id belongs to a private conversation.
func IsPrivateThread(id string) bool {
	return strings.HasPrefix(id, "private_")
}
