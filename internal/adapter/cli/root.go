package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omnitea/omnitea/internal/domain"
	"github.com/omnitea/omnitea/internal/store"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// BotRunner serves the Discord gateway until the context ends.
type BotRunner interface {
	Run(ctx context.Context) error
}

// Asker produces a one-shot completion outside any channel context.
// typeset controls whether math-bearing replies are rendered to images.
type Asker interface {
	Ask(ctx context.Context, question string, typeset bool) (domain.Reply, error)
}

// Renderer runs the LaTeX pipeline on markdown and returns PNG paths.
type Renderer interface {
	Render(ctx context.Context, markdown string) ([]string, error)
}

// HTMLConverter converts markdown to a standalone HTML document.
type HTMLConverter interface {
	ToHTML(ctx context.Context, markdown string) (string, error)
}

// Arguments encapsulates IO streams injected from the host process.
type Arguments struct {
	InReader  io.Reader
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI. The Discord and
// completion stacks are built lazily so commands that never touch them
// don't demand tokens or API keys.
type Dependencies struct {
	Args    Arguments
	Version string

	// NewBot builds the full gateway stack for the run command.
	NewBot func(ctx context.Context) (BotRunner, error)

	// NewAsker builds the one-shot completion pipeline for the ask
	// command.
	NewAsker func() (Asker, error)

	// NewRenderer builds a render pipeline writing into outDir; empty
	// means the configured default.
	NewRenderer func(outDir string) (Renderer, error)

	// HTML converts markdown for the render --html path.
	HTML HTMLConverter

	// OpenStore opens the exchange archive for the history command.
	OpenStore func() (store.Store, error)
}

// NewRootCommand constructs the root Cobra command. Running the binary
// with no arguments starts the bot, which is the container entrypoint
// contract.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "omnitea",
		Short: "A Discord chat bot that typesets math replies with LaTeX",
		Args:  cobra.NoArgs,
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runBot(cmd, deps)
	}

	root.AddCommand(
		runCommand(deps),
		askCommand(deps),
		renderCommand(deps),
		historyCommand(deps),
		doctorCommand(deps),
	)

	return root
}

// runCommand is the explicit form of the default action.
func runCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve the configured channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, deps)
		},
	}
}

func runBot(cmd *cobra.Command, deps Dependencies) error {
	if deps.NewBot == nil {
		return errors.New("bot dependencies not configured")
	}
	ctx := cmd.Context()
	bot, err := deps.NewBot(ctx)
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}
