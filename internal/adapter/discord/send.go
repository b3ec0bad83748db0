package discord

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

// sendClient is the slice of the Discord REST API reply delivery needs.
type sendClient interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ sendClient = (*discordgo.Session)(nil)

// sender posts a reply to a channel: rendered pages first, one message
// each, then the text in chunks. Typeset text goes out fenced so Discord
// does not mangle the TeX source.
type sender struct {
	api sendClient
	log *zap.Logger
}

func newSender(api sendClient, log *zap.Logger) *sender {
	return &sender{api: api, log: log.Named("send")}
}

func (s *sender) deliver(ctx context.Context, channelID string, reply domain.Reply) error {
	if reply.Typeset {
		for _, page := range reply.Pages {
			if err := s.sendFile(ctx, channelID, page); err != nil {
				// A dropped page is survivable; the fenced source
				// still carries the content.
				s.log.Warn("failed to post rendered page",
					zap.String("page", page),
					zap.Error(err),
				)
			}
		}
	}

	for _, chunk := range splitMessage(reply.Text, messageChunkSize) {
		content := chunk
		if reply.Typeset {
			content = fence(chunk)
		}
		if _, err := s.api.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

func (s *sender) sendFile(ctx context.Context, channelID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	if _, err := s.api.ChannelFileSend(channelID, filepath.Base(path), f, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to upload page: %w", err)
	}
	return nil
}
