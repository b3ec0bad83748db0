package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

// AskerDeps bundles the one-shot pipeline's ports. Renderer is
// optional; without one, typeset requests degrade to text.
type AskerDeps struct {
	Completer Completer
	Renderer  Renderer
	Prompt    PromptSource
}

// Asker answers a single question outside any channel context. It backs
// the terminal ask command: no history walk, no archive.
type Asker struct {
	deps AskerDeps
	log  *zap.Logger
}

// NewAsker creates an Asker.
func NewAsker(deps AskerDeps, log *zap.Logger) *Asker {
	return &Asker{deps: deps, log: log.Named("ask")}
}

func (a *Asker) validateDependencies() error {
	if a.deps.Completer == nil {
		return errors.New("completer is required")
	}
	if a.deps.Prompt == nil {
		return errors.New("prompt source is required")
	}
	return nil
}

// Ask completes a single question against the current system prompt.
// With typeset set, math-bearing replies are rendered to PNG pages;
// render failures degrade to the text reply.
func (a *Asker) Ask(ctx context.Context, question string, typeset bool) (domain.Reply, error) {
	if err := a.validateDependencies(); err != nil {
		return domain.Reply{}, err
	}

	conv := domain.Log{}.System(a.deps.Prompt.Current()).User(question)

	entry, usage, err := a.deps.Completer.Complete(ctx, conv)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("completion failed: %w", err)
	}

	reply := domain.Reply{
		Text:    entry.Content,
		Typeset: typeset && domain.HasInlineMath(entry.Content),
	}
	if reply.Typeset {
		if a.deps.Renderer == nil {
			a.log.Warn("no renderer configured, returning text only")
		} else if pages, err := a.deps.Renderer.Render(ctx, entry.Content); err != nil {
			a.log.Warn("render failed, returning text only", zap.Error(err))
		} else {
			reply.Pages = pages
		}
	}

	a.log.Info("answered",
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Int("pages", len(reply.Pages)),
	)
	return reply, nil
}
