package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
)

// Client talks to the OpenAI Chat Completions API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retry   RetryConfig
	log     *zap.Logger
}

// NewClient creates a client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   DefaultRetryConfig(),
		log:     zap.NewNop(),
	}
}

// SetBaseURL sets a custom base URL (for testing and proxies).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the per-request HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetryConfig overrides the retry behavior.
func (c *Client) SetRetryConfig(config RetryConfig) {
	c.retry = config
}

// SetLogger attaches a logger. The default discards everything.
func (c *Client) SetLogger(log *zap.Logger) {
	c.log = log.Named("openai")
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the assistant's reply
// along with token usage.
func (c *Client) Complete(ctx context.Context, conv domain.Log) (domain.Entry, domain.Usage, error) {
	payload, err := json.Marshal(ChatCompletionRequest{
		Model:    c.model,
		Messages: toWire(conv),
	})
	if err != nil {
		return domain.Entry{}, domain.Usage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.log.Debug("sending completion request",
		zap.String("model", c.model),
		zap.Int("messages", len(conv)),
		zap.String("api_key", RedactAPIKey(c.apiKey)),
	)

	start := time.Now()
	var chatResp ChatCompletionResponse
	operation := func() error {
		// A fresh request per attempt: the body reader is consumed on
		// every send.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return newTimeoutError("request timed out")
			}
			return newNetworkError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return newNetworkError(fmt.Errorf("failed to read response: %w", err))
		}

		if resp.StatusCode != http.StatusOK {
			return handleErrorResponse(resp.StatusCode, body)
		}

		chatResp = ChatCompletionResponse{}
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		return nil
	}

	if err := retryWithBackoff(ctx, c.retry, operation); err != nil {
		return domain.Entry{}, domain.Usage{}, err
	}

	choice := chatResp.Choices[0]
	usage := domain.Usage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}

	c.log.Debug("completion received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.String("finish_reason", choice.FinishReason),
		zap.String("reply", TruncateForLogging(choice.Message.Content)),
	)

	return domain.Entry{Role: domain.RoleAssistant, Content: choice.Message.Content}, usage, nil
}

func toWire(conv domain.Log) []Message {
	messages := make([]Message, len(conv))
	for i, entry := range conv {
		messages[i] = Message{Role: string(entry.Role), Content: entry.Content}
	}
	return messages
}

// handleErrorResponse converts a non-2xx response into a typed error.
// The API's JSON error body supplies the message when present; short
// non-JSON bodies are used verbatim.
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	detail := ErrorDetail{}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		detail = errResp.Error
	} else if len(body) > 0 && len(body) < 200 {
		detail.Message = string(body)
	}
	return classifyStatus(statusCode, detail)
}
