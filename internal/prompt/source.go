// Package prompt serves the system prompt that anchors every
// conversation. The prompt comes from an embedded default, an optional
// file override, and may be replaced per conversation by a barrier
// message.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
)

//go:embed default_prompt.md
var defaultPrompt string

// Source holds the active system prompt. It is safe for concurrent use;
// Reload swaps the text atomically.
type Source struct {
	mu   sync.RWMutex
	path string
	text string
}

// NewSource returns a Source backed by the file at path. An empty path
// selects the embedded default prompt.
func NewSource(path string) (*Source, error) {
	s := &Source{
		path: path,
		text: strings.TrimSpace(defaultPrompt),
	}
	if path != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Current returns the active system prompt.
func (s *Source) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Path returns the backing file path, or "" when the embedded default
// is in use.
func (s *Source) Path() string {
	return s.path
}

// Reload re-reads the backing file. It is a no-op for the embedded
// default.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}

	s.mu.Lock()
	s.text = strings.TrimSpace(string(data))
	s.mu.Unlock()
	return nil
}
