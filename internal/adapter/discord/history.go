package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

// historyClient is the slice of the Discord REST API history assembly
// needs.
type historyClient interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

var _ historyClient = (*discordgo.Session)(nil)

// History reads channel history pages and maps them to domain messages.
// Guild nicknames are resolved per author and cached; messages fetched
// over REST do not carry member data.
type History struct {
	api  historyClient
	self func() string
	log  *zap.Logger

	mu           sync.Mutex
	channelGuild map[string]string
	displayNames map[string]string
}

// NewHistory creates a history reader. self reports the bot's own user ID
// so its past replies map to assistant entries; it is a function because
// the ID is only known once the gateway session is ready.
func NewHistory(api historyClient, self func() string, log *zap.Logger) *History {
	if log == nil {
		log = zap.NewNop()
	}
	return &History{
		api:          api,
		self:         self,
		log:          log.Named("history"),
		channelGuild: make(map[string]string),
		displayNames: make(map[string]string),
	}
}

// MessagesBefore returns up to limit messages older than beforeID, newest
// first, the order the Discord API yields them in.
func (h *History) MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]domain.Message, error) {
	msgs, err := h.api.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel messages: %w", err)
	}

	guildID := h.guildID(ctx, channelID)
	selfID := h.self()

	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil {
			continue
		}
		out = append(out, domain.Message{
			ID:          m.ID,
			ChannelID:   channelID,
			GuildID:     guildID,
			AuthorID:    m.Author.ID,
			AuthorName:  h.displayName(ctx, guildID, m),
			Content:     m.Content,
			FromSelf:    m.Author.ID == selfID,
			Attachments: mapAttachments(m.Attachments),
		})
	}
	return out, nil
}

// guildID resolves which guild a channel belongs to, empty for DMs.
func (h *History) guildID(ctx context.Context, channelID string) string {
	h.mu.Lock()
	cached, ok := h.channelGuild[channelID]
	h.mu.Unlock()
	if ok {
		return cached
	}

	channel, err := h.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Warn("failed to resolve channel", zap.String("channel_id", channelID), zap.Error(err))
		return ""
	}

	h.mu.Lock()
	h.channelGuild[channelID] = channel.GuildID
	h.mu.Unlock()
	return channel.GuildID
}

// displayName returns the author's guild nickname when set, else the
// account username.
func (h *History) displayName(ctx context.Context, guildID string, m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if guildID == "" {
		return m.Author.Username
	}

	key := guildID + "/" + m.Author.ID
	h.mu.Lock()
	cached, ok := h.displayNames[key]
	h.mu.Unlock()
	if ok {
		return cached
	}

	name := m.Author.Username
	member, err := h.api.GuildMember(guildID, m.Author.ID, discordgo.WithContext(ctx))
	if err != nil {
		h.log.Debug("failed to resolve member, using username",
			zap.String("user_id", m.Author.ID),
			zap.Error(err),
		)
	} else if member.Nick != "" {
		name = member.Nick
	}

	h.mu.Lock()
	h.displayNames[key] = name
	h.mu.Unlock()
	return name
}

func mapAttachments(attachments []*discordgo.MessageAttachment) []domain.Attachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, domain.Attachment{URL: a.URL, Filename: a.Filename})
	}
	return out
}
