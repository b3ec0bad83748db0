package discord_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/adapter/discord"
)

func TestTextFetcher_FetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("line1\nline2"))
	}))
	defer server.Close()

	f := discord.NewTextFetcher(zap.NewNop())
	body, err := f.FetchText(context.Background(), server.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", body)
}

func TestTextFetcher_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := discord.NewTextFetcher(zap.NewNop())
	_, err := f.FetchText(context.Background(), server.URL+"/gone.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestTextFetcher_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	f := discord.NewTextFetcher(zap.NewNop())
	_, err := f.FetchText(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
