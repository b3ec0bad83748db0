package discord

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

type fakeSendAPI struct {
	// sequence interleaves "file:<name>" and "msg:<content>" so tests can
	// assert ordering.
	sequence []string
	sendErr  error
}

func (f *fakeSendAPI) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sequence = append(f.sequence, "msg:"+content)
	return &discordgo.Message{}, nil
}

func (f *fakeSendAPI) ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	f.sequence = append(f.sequence, "file:"+name)
	return &discordgo.Message{}, nil
}

func writePage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0o644))
	return path
}

func TestSender_PlainTextSingleMessage(t *testing.T) {
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	err := s.deliver(context.Background(), "chan-1", domain.Reply{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"msg:hello"}, api.sequence)
}

func TestSender_TypesetPagesThenFencedSource(t *testing.T) {
	dir := t.TempDir()
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	reply := domain.Reply{
		Text:    "Euler: $e^{i\\pi} + 1 = 0$",
		Typeset: true,
		Pages: []string{
			writePage(t, dir, "abc.png"),
			writePage(t, dir, "abc-1.png"),
		},
	}
	err := s.deliver(context.Background(), "chan-1", reply)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"file:abc.png",
		"file:abc-1.png",
		"msg:```Euler: $e^{i\\pi} + 1 = 0$```",
	}, api.sequence)
}

func TestSender_ChunksLongText(t *testing.T) {
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	text := strings.Repeat("a", messageChunkSize+1)
	err := s.deliver(context.Background(), "chan-1", domain.Reply{Text: text})
	require.NoError(t, err)

	require.Len(t, api.sequence, 2)
	assert.Equal(t, messageChunkSize, len([]rune(strings.TrimPrefix(api.sequence[0], "msg:"))))
	assert.Equal(t, "msg:a", api.sequence[1])
}

func TestSender_FencedChunksStayWithinLimit(t *testing.T) {
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	// A typeset reply with no pages is the render-failure fallback: the
	// source still goes out fenced.
	reply := domain.Reply{Text: strings.Repeat("x", 3000), Typeset: true}
	err := s.deliver(context.Background(), "chan-1", reply)
	require.NoError(t, err)

	require.Len(t, api.sequence, 2)
	for _, entry := range api.sequence {
		content := strings.TrimPrefix(entry, "msg:")
		assert.LessOrEqual(t, len([]rune(content)), maxMessageRunes)
		assert.True(t, strings.HasPrefix(content, "```"))
		assert.True(t, strings.HasSuffix(content, "```"))
	}
}

func TestSender_MissingPageStillSendsSource(t *testing.T) {
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	reply := domain.Reply{
		Text:    "$x$",
		Typeset: true,
		Pages:   []string{"/nonexistent/gone.png"},
	}
	err := s.deliver(context.Background(), "chan-1", reply)
	require.NoError(t, err, "a lost page must not kill the reply")
	assert.Equal(t, []string{"msg:```$x$```"}, api.sequence)
}

func TestSender_EmptyTextSendsNothing(t *testing.T) {
	api := &fakeSendAPI{}
	s := newSender(api, zap.NewNop())

	err := s.deliver(context.Background(), "chan-1", domain.Reply{})
	require.NoError(t, err)
	assert.Empty(t, api.sequence)
}

func TestSender_SendErrorPropagates(t *testing.T) {
	api := &fakeSendAPI{sendErr: errors.New("missing permissions")}
	s := newSender(api, zap.NewNop())

	err := s.deliver(context.Background(), "chan-1", domain.Reply{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message")
}
