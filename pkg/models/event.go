package models

// Event is a normalized inbound instant-messaging event, produced by a
// channel adapter after trigger-word stripping and media extraction.
type Event struct {
	Channel ChannelType `json:"channel"`

	// GroupID is empty for one-on-one conversations.
	GroupID string `json:"group_id,omitempty"`
	UserID  string `json:"user_id"`

	UserName string `json:"user_name,omitempty"`

	// Text is the plain message text with trigger words removed.
	Text string `json:"text"`

	// ReplyText is the text of the quoted message, if any.
	ReplyText string `json:"reply_text,omitempty"`

	// MediaURLs are attachment URLs extracted from the inbound message.
	MediaURLs []string `json:"media_urls,omitempty"`

	// ToMe reports whether the bot was addressed directly (at-mention).
	ToMe bool `json:"to_me,omitempty"`

	// Superuser marks events from operators allowed to run admin commands.
	Superuser bool `json:"superuser,omitempty"`
}

// IsGroup reports whether the event originated in a group conversation.
func (e *Event) IsGroup() bool { return e.GroupID != "" }

// Reply is an outbound message produced for an inbound event.
type Reply struct {
	// Text is plain reply text. Empty when the reply is media-only.
	Text string `json:"text,omitempty"`

	// MediaKind is "image", "video" or "audio" when MediaURL is set.
	MediaKind string `json:"media_kind,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`

	// Chunks, when non-empty, replaces Text with bounded-size parts that
	// should be sent as separate messages.
	Chunks []string `json:"chunks,omitempty"`
}
