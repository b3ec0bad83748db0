package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
	"github.com/omnitea/omnitea/internal/store"
)

// Completer produces the assistant's next entry for a conversation.
type Completer interface {
	Complete(ctx context.Context, conv domain.Log) (domain.Entry, domain.Usage, error)
	Model() string
}

// Renderer typesets markdown into PNG pages.
type Renderer interface {
	Render(ctx context.Context, markdown string) ([]string, error)
}

// Archive persists exchange records.
type Archive interface {
	SaveExchange(ctx context.Context, exchange store.Exchange) error
}

// ResponderDeps bundles the responder's outbound ports.
type ResponderDeps struct {
	Assembler *Assembler
	Completer Completer
	Renderer  Renderer
	Archive   Archive // optional; nil disables archiving
}

// Responder handles one triggering message end to end: assemble the
// conversation, complete it, and shape the reply.
type Responder struct {
	deps ResponderDeps
	log  *zap.Logger
}

// NewResponder creates a Responder.
func NewResponder(deps ResponderDeps, log *zap.Logger) *Responder {
	return &Responder{deps: deps, log: log.Named("chat")}
}

// validateDependencies checks that all required dependencies are present.
func (r *Responder) validateDependencies() error {
	if r.deps.Assembler == nil {
		return errors.New("assembler is required")
	}
	if r.deps.Completer == nil {
		return errors.New("completer is required")
	}
	if r.deps.Renderer == nil {
		return errors.New("renderer is required")
	}
	return nil
}

// Respond produces the bot's reply for the triggering message. Replies
// containing inline TeX math are typeset into images; if typesetting
// fails, the fenced source still goes out.
func (r *Responder) Respond(ctx context.Context, trigger domain.Message) (domain.Reply, error) {
	if err := r.validateDependencies(); err != nil {
		return domain.Reply{}, err
	}

	start := time.Now()

	assembly, err := r.deps.Assembler.Assemble(ctx, trigger)
	if err != nil {
		return domain.Reply{}, err
	}

	entry, usage, err := r.deps.Completer.Complete(ctx, assembly.Log)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("completion failed: %w", err)
	}

	reply := domain.Reply{
		Text:    entry.Content,
		Typeset: domain.HasInlineMath(entry.Content),
	}
	if reply.Typeset {
		pages, err := r.deps.Renderer.Render(ctx, entry.Content)
		if err != nil {
			r.log.Warn("render failed, sending source only", zap.Error(err))
		} else {
			reply.Pages = pages
		}
	}

	r.archiveExchange(ctx, trigger, assembly, usage, reply, time.Since(start))

	r.log.Info("reply ready",
		zap.String("channel_id", trigger.ChannelID),
		zap.Bool("typeset", reply.Typeset),
		zap.Int("pages", len(reply.Pages)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply, nil
}

// archiveExchange records the exchange metadata. Failures are logged
// and never block the reply.
func (r *Responder) archiveExchange(ctx context.Context, trigger domain.Message, assembly Assembly, usage domain.Usage, reply domain.Reply, elapsed time.Duration) {
	if r.deps.Archive == nil {
		return
	}

	mode := store.ModeText
	if reply.Typeset {
		mode = store.ModeImage
	}

	now := time.Now()
	exchange := store.Exchange{
		ExchangeID:       store.GenerateExchangeID(now, trigger.ChannelID, trigger.ID),
		CreatedAt:        now,
		GuildID:          trigger.GuildID,
		ChannelID:        trigger.ChannelID,
		UserID:           trigger.AuthorID,
		UserName:         trigger.AuthorName,
		Model:            r.deps.Completer.Model(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Mode:             mode,
		Pages:            len(reply.Pages),
		PromptOverride:   assembly.PromptOverride,
		DurationMS:       elapsed.Milliseconds(),
	}

	if err := r.deps.Archive.SaveExchange(ctx, exchange); err != nil {
		r.log.Warn("failed to archive exchange", zap.Error(err))
	}
}
