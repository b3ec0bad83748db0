package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omnitea/omnitea/internal/adapter/cli"
	"github.com/omnitea/omnitea/internal/adapter/discord"
	"github.com/omnitea/omnitea/internal/adapter/llm"
	"github.com/omnitea/omnitea/internal/adapter/llm/openai"
	"github.com/omnitea/omnitea/internal/adapter/observability"
	"github.com/omnitea/omnitea/internal/adapter/render"
	"github.com/omnitea/omnitea/internal/adapter/store/sqlite"
	"github.com/omnitea/omnitea/internal/config"
	"github.com/omnitea/omnitea/internal/prompt"
	"github.com/omnitea/omnitea/internal/store"
	"github.com/omnitea/omnitea/internal/usecase/chat"
	"github.com/omnitea/omnitea/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "omnitea",
		EnvPrefix:   "OMNITEA",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	root := cli.NewRootCommand(cli.Dependencies{
		Version: version.Value(),
		NewBot: func(ctx context.Context) (cli.BotRunner, error) {
			return buildGateway(cfg, logger)
		},
		NewAsker: func() (cli.Asker, error) {
			return buildAsker(cfg, logger)
		},
		NewRenderer: func(outDir string) (cli.Renderer, error) {
			return buildPageRenderer(cfg.Render, outDir, logger)
		},
		HTML:      render.NewHTMLConverter(),
		OpenStore: openStoreFunc(cfg.Store),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "omnitea"))
	}
	return paths
}

// gateway bundles the connected bot with the prompt watcher and the
// resources that must be released when it stops serving.
type gateway struct {
	bot     *discord.Bot
	prompts *prompt.Source
	watch   bool
	closers []func()
	log     *zap.Logger
}

// Run serves the Discord gateway and the prompt file watcher until ctx
// is canceled.
func (g *gateway) Run(ctx context.Context) error {
	defer func() {
		for _, closer := range g.closers {
			closer()
		}
	}()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return g.bot.Run(ctx) })
	if g.watch {
		group.Go(func() error { return prompt.Watch(ctx, g.prompts, g.log) })
	}
	return group.Wait()
}

// buildGateway wires the full message-answering pipeline: history and
// attachments from Discord, completion from OpenAI, rendering through
// the TeX pipeline, and the exchange archive.
func buildGateway(cfg config.Config, logger *zap.Logger) (cli.BotRunner, error) {
	bot, err := discord.NewBot(cfg.Discord.Token, cfg.Discord.Channel, logger)
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.NewSource(cfg.Prompt.File)
	if err != nil {
		return nil, err
	}

	completer, err := buildCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}

	g := &gateway{bot: bot, prompts: prompts, watch: cfg.Prompt.Watch, log: logger}

	renderer, closeRenderer, err := buildRenderer(cfg.Render, "", logger)
	if err != nil {
		return nil, err
	}
	if closeRenderer != nil {
		g.closers = append(g.closers, closeRenderer)
	}

	// The archive is best-effort: a broken store logs a warning and the
	// bot answers without it.
	var archive chat.Archive
	if cfg.Store.Enabled {
		st, err := openStore(cfg.Store)
		if err != nil {
			logger.Warn("exchange archive unavailable", zap.Error(err))
		} else {
			archive = st
			g.closers = append(g.closers, func() { _ = st.Close() })
		}
	}

	assembler := chat.NewAssembler(chat.AssemblerDeps{
		History:     bot.History(),
		Attachments: discord.NewTextFetcher(logger),
		Prompt:      prompts,
		Counter:     llm.Counter{},
	}, cfg.Chat.TokenBudget, cfg.Chat.HistoryPageSize, logger)

	responder := chat.NewResponder(chat.ResponderDeps{
		Assembler: assembler,
		Completer: completer,
		Renderer:  renderer,
		Archive:   archive,
	}, logger)

	bot.SetResponder(responder)
	return g, nil
}

func buildAsker(cfg config.Config, logger *zap.Logger) (cli.Asker, error) {
	completer, err := buildCompleter(cfg, logger)
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.NewSource(cfg.Prompt.File)
	if err != nil {
		return nil, err
	}

	renderer, _, err := buildRenderer(cfg.Render, "", logger)
	if err != nil {
		return nil, err
	}

	return chat.NewAsker(chat.AskerDeps{
		Completer: completer,
		Renderer:  renderer,
		Prompt:    prompts,
	}, logger), nil
}

func buildCompleter(cfg config.Config, logger *zap.Logger) (*openai.Client, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("openai api key is required (set OMNITEA_OPENAI_APIKEY or OPENAI_KEY)")
	}

	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if cfg.OpenAI.BaseURL != "" {
		client.SetBaseURL(cfg.OpenAI.BaseURL)
	}
	client.SetTimeout(openai.ParseTimeout(cfg.HTTP))
	client.SetRetryConfig(openai.BuildRetryConfig(cfg.HTTP))
	client.SetLogger(logger)
	return client, nil
}

// buildRenderer returns the chat-facing renderer plus a cleanup func.
// With rendering configured off it returns a stub whose errors make the
// responder fall back to fenced source.
func buildRenderer(cfg config.RenderConfig, workDirOverride string, logger *zap.Logger) (chat.Renderer, func(), error) {
	if !cfg.Enabled {
		return disabledRenderer{}, nil, nil
	}

	rc := render.Config{
		WorkDir:       cfg.WorkDir,
		MaxConcurrent: int64(cfg.MaxConcurrent),
		CacheSize:     cfg.CacheSize,
		CacheTTL:      config.ParseDurationDefault(cfg.CacheTTL, time.Hour),
		Timeout:       config.ParseDurationDefault(cfg.Timeout, 90*time.Second),
	}
	if workDirOverride != "" {
		rc.WorkDir = workDirOverride
	}

	renderer, err := render.New(rc, render.ExecRunner{}, logger)
	if err != nil {
		return nil, nil, err
	}
	return pageRenderer{renderer}, renderer.Close, nil
}

// buildPageRenderer serves the render command, which is an explicit
// request to typeset: the config kill switch does not apply. The cache
// is never purged so the pages outlive the process.
func buildPageRenderer(cfg config.RenderConfig, outDir string, logger *zap.Logger) (cli.Renderer, error) {
	cfg.Enabled = true
	renderer, _, err := buildRenderer(cfg, outDir, logger)
	if err != nil {
		return nil, err
	}
	return renderer, nil
}

func openStoreFunc(cfg config.StoreConfig) func() (store.Store, error) {
	if !cfg.Enabled {
		return nil
	}
	return func() (store.Store, error) {
		return openStore(cfg)
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return sqlite.NewStore(cfg.Path)
}

// pageRenderer adapts the render pipeline's Result to the plain page
// list the chat and CLI ports expect.
type pageRenderer struct {
	renderer *render.Renderer
}

func (p pageRenderer) Render(ctx context.Context, markdown string) ([]string, error) {
	result, err := p.renderer.Render(ctx, markdown)
	if err != nil {
		return nil, err
	}
	return result.Pages, nil
}

// disabledRenderer stands in when rendering is configured off.
type disabledRenderer struct{}

func (disabledRenderer) Render(ctx context.Context, markdown string) ([]string, error) {
	return nil, errors.New("rendering is disabled")
}

// Compile-time interface compliance checks
var _ cli.BotRunner = (*gateway)(nil)
var _ cli.Asker = (*chat.Asker)(nil)
var _ cli.Renderer = (pageRenderer{})
var _ cli.HTMLConverter = (*render.HTMLConverter)(nil)
var _ chat.Completer = (*openai.Client)(nil)
var _ chat.Renderer = (pageRenderer{})
var _ chat.Renderer = (disabledRenderer{})
var _ chat.Archive = (*sqlite.Store)(nil)
var _ chat.History = (*discord.History)(nil)
var _ chat.AttachmentFetcher = (*discord.TextFetcher)(nil)
var _ chat.PromptSource = (*prompt.Source)(nil)
var _ chat.TokenCounter = (llm.Counter{})
var _ discord.Responder = (*chat.Responder)(nil)
var _ store.Store = (*sqlite.Store)(nil)
