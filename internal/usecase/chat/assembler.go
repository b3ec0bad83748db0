// Package chat holds the conversation workflow: walking channel history
// into a token-budgeted log, completing it, and shaping the reply.
package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/domain"
)

// History pages through a channel's past messages. Pages arrive newest
// first, the way the Discord API returns them.
type History interface {
	MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]domain.Message, error)
}

// AttachmentFetcher retrieves the text body of a message attachment.
type AttachmentFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// PromptSource supplies the current system prompt.
type PromptSource interface {
	Current() string
}

// TokenCounter estimates the model token cost of a conversation.
type TokenCounter interface {
	CountLog(conv domain.Log) int
}

// AssemblerDeps bundles the assembler's outbound ports.
type AssemblerDeps struct {
	History     History
	Attachments AttachmentFetcher
	Prompt      PromptSource
	Counter     TokenCounter
}

// Assembler turns a triggering message and its channel history into the
// conversation log sent for completion.
type Assembler struct {
	deps     AssemblerDeps
	budget   int
	pageSize int
	log      *zap.Logger
}

// Assembly is the assembled conversation plus facts about how it was
// built.
type Assembly struct {
	Log            domain.Log
	PromptOverride bool // a barrier message replaced the system prompt
}

// NewAssembler creates an Assembler. budget is the token ceiling for
// the assembled log; pageSize is how many messages each history fetch
// requests.
func NewAssembler(deps AssemblerDeps, budget, pageSize int, log *zap.Logger) *Assembler {
	return &Assembler{
		deps:     deps,
		budget:   budget,
		pageSize: pageSize,
		log:      log.Named("assemble"),
	}
}

// Assemble walks the channel history backwards from trigger and builds
// the conversation log. The walk stops at a barrier message, at the
// token budget, or at the start of the channel; aside messages are
// skipped. Once collected, the oldest messages are dropped until the
// log fits the budget — the triggering message is always kept.
func (a *Assembler) Assemble(ctx context.Context, trigger domain.Message) (Assembly, error) {
	included := []domain.Message{trigger}
	override := ""
	haveOverride := false

	// Attachment bodies are memoized for the duration of one assembly,
	// since the log is rebuilt after every page.
	attachments := map[string]string{}

	anchor := trigger.ID
	for {
		page, err := a.deps.History.MessagesBefore(ctx, trigger.ChannelID, anchor, a.pageSize)
		if err != nil {
			return Assembly{}, fmt.Errorf("failed to fetch history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		// Anchor on the oldest fetched message, not the oldest kept
		// one: a page of nothing but asides must still advance the
		// walk.
		anchor = page[len(page)-1].ID

		foundBarrier := false
		var older []domain.Message
		for _, message := range page {
			kind, remainder := domain.Classify(message.Content)
			if kind == domain.KindBarrier {
				a.log.Debug("barrier found, stopping history walk",
					zap.String("message_id", message.ID))
				foundBarrier = true
				if remainder != "" {
					override = remainder
					haveOverride = true
				}
				break
			}
			if kind == domain.KindAside {
				continue
			}
			older = append(older, message)
		}

		// The page is newest first; flip it so prepending preserves
		// chronology.
		for i, j := 0, len(older)-1; i < j; i, j = i+1, j-1 {
			older[i], older[j] = older[j], older[i]
		}
		included = append(older, included...)

		if foundBarrier {
			break
		}
		conv := a.build(ctx, included, a.systemPrompt(override, haveOverride), attachments)
		if a.deps.Counter.CountLog(conv) > a.budget {
			break
		}
	}

	// Trim from the oldest end until the log fits.
	systemPrompt := a.systemPrompt(override, haveOverride)
	var conv domain.Log
	for {
		conv = a.build(ctx, included, systemPrompt, attachments)
		if a.deps.Counter.CountLog(conv) <= a.budget || len(included) == 1 {
			break
		}
		included = included[1:]
	}

	a.log.Debug("conversation assembled",
		zap.Int("messages", len(included)),
		zap.Int("tokens", a.deps.Counter.CountLog(conv)),
		zap.Bool("prompt_override", haveOverride),
	)

	return Assembly{Log: conv, PromptOverride: haveOverride}, nil
}

func (a *Assembler) systemPrompt(override string, haveOverride bool) string {
	if haveOverride {
		return override
	}
	return a.deps.Prompt.Current()
}

// build renders messages into a log, injecting the system prompt once:
// before the fourth-from-last message, or at the front of short
// conversations. Keeping the prompt near the end stops long histories
// from drowning it out.
func (a *Assembler) build(ctx context.Context, messages []domain.Message, systemPrompt string, attachments map[string]string) domain.Log {
	conv := domain.Log{}
	for i, message := range messages {
		if i == len(messages)-4 || (i == 0 && len(messages) < 4) {
			conv = conv.System(systemPrompt)
		}
		if message.FromSelf {
			conv = conv.Assistant(message.Content)
			continue
		}
		conv = conv.User(a.formatUser(ctx, message, attachments))
	}
	return conv
}

// formatUser renders one user message, appending the bodies of any text
// attachments. Attachments that cannot be fetched are logged and left
// out rather than failing the whole assembly.
func (a *Assembler) formatUser(ctx context.Context, message domain.Message, cache map[string]string) string {
	content := message.Content
	for _, attachment := range message.Attachments {
		body, seen := cache[attachment.URL]
		if !seen {
			fetched, err := a.deps.Attachments.FetchText(ctx, attachment.URL)
			if err != nil {
				a.log.Warn("failed to fetch attachment",
					zap.String("url", attachment.URL),
					zap.Error(err))
				fetched = ""
			}
			cache[attachment.URL] = fetched
			body = fetched
		}
		if body == "" {
			continue
		}
		content += fmt.Sprintf("File %s: \n%s", attachment.Filename, body)
	}
	return fmt.Sprintf("%s says: %s", message.AuthorName, content)
}
