// Package llm provides tokenization shared by the completion adapter and
// the conversation assembler.
package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/omnitea/omnitea/internal/domain"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it lazily.
// cl100k_base is the GPT-3.5/GPT-4 encoding and is what the chat token
// budget is calibrated against.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// EstimateTokens returns an estimated token count for the given text.
func EstimateTokens(text string) int {
	enc, err := getEncoder()
	if err != nil {
		// Fallback to character-based estimate if tiktoken fails
		return len(text) / 4
	}
	tokens := enc.Encode(text, nil, nil)
	return len(tokens)
}

// perEntryOverhead approximates the wrapping tokens the chat format adds
// around each message (role markers and separators).
const perEntryOverhead = 4

// Counter estimates chat log sizes for budget trimming.
type Counter struct{}

// CountLog returns the estimated token footprint of a chat log: content
// tokens plus a fixed per-entry overhead.
func (Counter) CountLog(log domain.Log) int {
	total := 0
	for _, entry := range log {
		total += EstimateTokens(entry.Content) + perEntryOverhead
	}
	return total
}
