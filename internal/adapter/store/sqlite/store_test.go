package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitea/omnitea/internal/adapter/store/sqlite"
	"github.com/omnitea/omnitea/internal/store"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create test store")

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func testExchange(id string, at time.Time) store.Exchange {
	return store.Exchange{
		ExchangeID:       id,
		CreatedAt:        at,
		GuildID:          "guild-1",
		ChannelID:        "channel-1",
		UserID:           "user-1",
		UserName:         "alice",
		Model:            "gpt-3.5-turbo",
		PromptTokens:     120,
		CompletionTokens: 40,
		Mode:             store.ModeText,
		Pages:            0,
		PromptOverride:   false,
		DurationMS:       850,
	}
}

func TestStore_SaveExchange_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Truncate to avoid sub-second precision loss
	exchange := testExchange("ex-1", time.Now().Truncate(time.Second))
	exchange.Mode = store.ModeImage
	exchange.Pages = 3
	exchange.PromptOverride = true

	require.NoError(t, s.SaveExchange(ctx, exchange))

	got, err := s.RecentExchanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, exchange.ExchangeID, got[0].ExchangeID)
	assert.True(t, exchange.CreatedAt.Equal(got[0].CreatedAt))
	assert.Equal(t, exchange.GuildID, got[0].GuildID)
	assert.Equal(t, exchange.ChannelID, got[0].ChannelID)
	assert.Equal(t, exchange.UserID, got[0].UserID)
	assert.Equal(t, exchange.UserName, got[0].UserName)
	assert.Equal(t, exchange.Model, got[0].Model)
	assert.Equal(t, exchange.PromptTokens, got[0].PromptTokens)
	assert.Equal(t, exchange.CompletionTokens, got[0].CompletionTokens)
	assert.Equal(t, store.ModeImage, got[0].Mode)
	assert.Equal(t, 3, got[0].Pages)
	assert.True(t, got[0].PromptOverride)
	assert.Equal(t, exchange.DurationMS, got[0].DurationMS)
}

func TestStore_RecentExchanges_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveExchange(ctx, testExchange("ex-old", now.Add(-2*time.Hour))))
	require.NoError(t, s.SaveExchange(ctx, testExchange("ex-mid", now.Add(-time.Hour))))
	require.NoError(t, s.SaveExchange(ctx, testExchange("ex-new", now)))

	got, err := s.RecentExchanges(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ex-new", got[0].ExchangeID)
	assert.Equal(t, "ex-mid", got[1].ExchangeID)
}

func TestStore_RecentExchanges_Empty(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.RecentExchanges(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveExchange_RejectsUnknownMode(t *testing.T) {
	s := setupTestStore(t)

	exchange := testExchange("ex-bad", time.Now())
	exchange.Mode = "carrier-pigeon"

	err := s.SaveExchange(context.Background(), exchange)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save exchange")
}

func TestNewStore_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "omnitea.db")

	s, err := sqlite.NewStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveExchange(context.Background(), testExchange("ex-1", time.Now())))
	assert.FileExists(t, path)
}
