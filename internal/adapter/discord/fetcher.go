package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// maxAttachmentBytes caps attachment downloads. Attachment text feeds
	// a token-budgeted chat log; anything bigger than this would be
	// trimmed away immediately.
	maxAttachmentBytes = 1 << 20

	defaultFetchTimeout = 30 * time.Second
)

// TextFetcher downloads message attachments from the Discord CDN as text.
type TextFetcher struct {
	client *http.Client
	log    *zap.Logger
}

// NewTextFetcher creates a fetcher with a sane default timeout.
func NewTextFetcher(log *zap.Logger) *TextFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &TextFetcher{
		client: &http.Client{Timeout: defaultFetchTimeout},
		log:    log.Named("attachments"),
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (f *TextFetcher) SetHTTPClient(client *http.Client) {
	f.client = client
}

// FetchText downloads the attachment at url and returns its body as a
// string.
func (f *TextFetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build attachment request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch attachment: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read attachment body: %w", err)
	}

	f.log.Debug("attachment fetched",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}
