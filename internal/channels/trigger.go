package channels

import "strings"

// Trigger decides whether an inbound message addresses the bot and strips
// the trigger token from the text. Group messages must match a trigger;
// private messages always pass.
type Trigger struct {
	// Modes enables trigger mechanisms: "at", "keyword", "prefix".
	Modes []string

	// Words are the keyword/prefix tokens.
	Words []string
}

func (t Trigger) has(mode string) bool {
	for _, m := range t.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Match reports whether a group message triggers the bot, and returns the
// text with the matched trigger word removed. toMe is the platform's
// at-mention signal.
func (t Trigger) Match(text string, toMe bool) (string, bool) {
	if t.has("at") && toMe {
		return strings.TrimSpace(text), true
	}
	if t.has("prefix") {
		for _, w := range t.Words {
			if strings.HasPrefix(text, w) {
				return strings.TrimSpace(strings.TrimPrefix(text, w)), true
			}
		}
	}
	if t.has("keyword") {
		for _, w := range t.Words {
			if strings.Contains(text, w) {
				return strings.TrimSpace(strings.Replace(text, w, "", 1)), true
			}
		}
	}
	return text, false
}
