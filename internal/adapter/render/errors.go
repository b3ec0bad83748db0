package render

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the rendering pipeline.
var (
	ErrEmptyMarkdown = errors.New("markdown content cannot be empty")
	ErrNoPages       = errors.New("rendering produced no pages")
)

// CommandError reports a failed pipeline command along with whatever it
// wrote to stderr, which is where pandoc and convert explain themselves.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, strings.TrimSpace(e.Stderr), e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
