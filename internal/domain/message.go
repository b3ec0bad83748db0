package domain

import "strings"

// Control prefixes recognized in channel messages.
const (
	barrierPrefix = "|b|"
	asidePrefix   = "|a|"
)

// MessageKind classifies how a channel message participates in a
// conversation.
type MessageKind int

const (
	// KindNormal messages are included in the chat log and answered.
	KindNormal MessageKind = iota
	// KindBarrier messages stop history collection. Text after the
	// prefix overrides the system prompt for the conversation.
	KindBarrier
	// KindAside messages are excluded from the chat log entirely.
	KindAside
)

// Classify inspects a message body for control prefixes. For barriers it
// also returns the trimmed remainder, which is the per-conversation system
// prompt override when non-empty.
func Classify(content string) (MessageKind, string) {
	switch {
	case strings.HasPrefix(content, barrierPrefix):
		return KindBarrier, strings.TrimSpace(content[len(barrierPrefix):])
	case strings.HasPrefix(content, asidePrefix):
		return KindAside, ""
	default:
		return KindNormal, ""
	}
}

// Attachment is a file attached to a channel message.
type Attachment struct {
	URL      string
	Filename string
}

// Message is a transport-neutral view of a channel message, carrying only
// what conversation assembly needs.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string // display name: guild nickname when set, else username
	Content     string
	FromSelf    bool // authored by the bot itself
	Attachments []Attachment
}
