// Package store defines the exchange archive: one record per answered
// message, metadata only. Conversation text stays in Discord.
package store

import (
	"context"
	"time"
)

// Reply delivery modes.
const (
	ModeText  = "text"
	ModeImage = "image"
)

// Exchange records one answered message.
type Exchange struct {
	ExchangeID       string
	CreatedAt        time.Time
	GuildID          string
	ChannelID        string
	UserID           string
	UserName         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Mode             string // ModeText or ModeImage
	Pages            int    // PNG pages posted; 0 for text replies
	PromptOverride   bool   // a barrier message replaced the system prompt
	DurationMS       int64
}

// Store is the persistence interface for the exchange archive.
type Store interface {
	SaveExchange(ctx context.Context, exchange Exchange) error
	RecentExchanges(ctx context.Context, limit int) ([]Exchange, error)
	Close() error
}
