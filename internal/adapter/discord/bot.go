// Package discord connects the chat pipeline to the Discord gateway. The
// bot serves one named guild channel plus direct messages, walks channel
// history through the History reader, and posts replies as rendered pages
// and fenced source chunks.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

// Reactions acknowledging control messages.
const (
	barrierReaction = "✅"
	asideReaction   = "🔇"
)

// typingInterval refreshes the typing indicator, which Discord expires
// after about ten seconds.
const typingInterval = 8 * time.Second

// Responder produces a reply to a triggering channel message.
type Responder interface {
	Respond(ctx context.Context, trigger domain.Message) (domain.Reply, error)
}

// Bot owns the gateway session and dispatches channel messages to the
// responder.
type Bot struct {
	session     *discordgo.Session
	channelName string
	responder   Responder
	send        *sender
	log         *zap.Logger

	// ctx is the run context, set once before the session opens.
	ctx context.Context
}

// NewBot creates a gateway session for the given bot token. The bot
// answers messages in guild channels named channelName and in DMs.
// A responder must be attached with SetResponder before Run.
func NewBot(token, channelName string, log *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session:     session,
		channelName: channelName,
		send:        newSender(session, log),
		log:         log.Named("discord"),
	}
	session.AddHandler(b.handleReady)
	session.AddHandler(b.handleMessage)
	return b, nil
}

// SetResponder attaches the reply pipeline. Split from NewBot because the
// pipeline's history reader is built from this bot's session.
func (b *Bot) SetResponder(r Responder) {
	b.responder = r
}

// History returns a channel history reader backed by this bot's session.
func (b *Bot) History() *History {
	return NewHistory(b.session, b.selfID, b.log)
}

func (b *Bot) validateDependencies() error {
	if b.responder == nil {
		return errors.New("responder is required")
	}
	return nil
}

// Run opens the gateway and serves until ctx is canceled, then closes the
// session. In-flight work is abandoned through context cancellation.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.validateDependencies(); err != nil {
		return err
	}
	b.ctx = ctx

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	<-ctx.Done()

	b.log.Info("shutting down gateway")
	if err := b.session.Close(); err != nil {
		b.log.Warn("failed to close gateway cleanly", zap.Error(err))
	}
	return nil
}

func (b *Bot) selfID() string {
	if u := b.session.State.User; u != nil {
		return u.ID
	}
	return ""
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info(r.User.Username + " is connected!")
}

// handleMessage runs on discordgo's per-event goroutine, so blocking on
// the completion round trip here is fine.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	ctx := b.ctx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if m.Author == nil || m.Author.ID == b.selfID() {
		return
	}

	channel, err := b.lookupChannel(ctx, m.ChannelID)
	if err != nil {
		b.log.Warn("failed to resolve channel", zap.String("channel_id", m.ChannelID), zap.Error(err))
		return
	}
	if !servesChannel(channel, b.channelName) {
		return
	}

	kind, _ := domain.Classify(m.Content)
	switch kind {
	case domain.KindBarrier:
		b.react(ctx, m, barrierReaction)
		return
	case domain.KindAside:
		b.react(ctx, m, asideReaction)
		return
	}

	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go b.keepTyping(typingCtx, m.ChannelID)

	reply, err := b.responder.Respond(ctx, triggerFromEvent(m.Message))
	if err != nil {
		// The channel stays silent on completion failures.
		b.log.Error("failed to produce reply",
			zap.String("channel_id", m.ChannelID),
			zap.String("message_id", m.ID),
			zap.Error(err),
		)
		return
	}
	stopTyping()

	if err := b.send.deliver(ctx, m.ChannelID, reply); err != nil {
		b.log.Error("failed to deliver reply",
			zap.String("channel_id", m.ChannelID),
			zap.Error(err),
		)
	}
}

// lookupChannel prefers the gateway state cache and falls back to REST.
func (b *Bot) lookupChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := b.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	return b.session.Channel(channelID, discordgo.WithContext(ctx))
}

func (b *Bot) react(ctx context.Context, m *discordgo.MessageCreate, emoji string) {
	if err := b.session.MessageReactionAdd(m.ChannelID, m.ID, emoji, discordgo.WithContext(ctx)); err != nil {
		b.log.Warn("failed to add reaction", zap.String("message_id", m.ID), zap.Error(err))
	}
}

// keepTyping shows the typing indicator until ctx is canceled.
func (b *Bot) keepTyping(ctx context.Context, channelID string) {
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()

	for {
		if err := b.session.ChannelTyping(channelID, discordgo.WithContext(ctx)); err != nil && ctx.Err() == nil {
			b.log.Debug("failed to send typing indicator", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// servesChannel decides whether a message's channel is one the bot
// answers in: DMs always, guild channels only when the name matches.
func servesChannel(channel *discordgo.Channel, name string) bool {
	if channel.Type == discordgo.ChannelTypeDM {
		return true
	}
	return channel.Name == name
}

// triggerFromEvent maps a gateway message to the domain view. Gateway
// events carry member data inline, so no REST lookup is needed here.
func triggerFromEvent(m *discordgo.Message) domain.Message {
	name := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	return domain.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		AuthorID:    m.Author.ID,
		AuthorName:  name,
		Content:     m.Content,
		Attachments: mapAttachments(m.Attachments),
	}
}
