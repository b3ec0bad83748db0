package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func askCommand(deps Dependencies) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question from the terminal",
		Long: `Sends a single question through the completion pipeline and prints the
reply. The question comes from the arguments, or from stdin when none are
given. With --render, math-bearing replies are also typeset to PNG files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.NewAsker == nil {
				return errors.New("ask dependencies not configured")
			}

			question, err := readQuestion(cmd, args, deps.Args.InReader)
			if err != nil {
				return err
			}
			if question == "" {
				return errors.New("no question given")
			}

			asker, err := deps.NewAsker()
			if err != nil {
				return err
			}

			reply, err := asker.Ask(cmd.Context(), question, render)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, reply.Text)
			for _, page := range reply.Pages {
				_, _ = fmt.Fprintln(out, page)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "Typeset math replies to PNG files")
	return cmd
}

// readQuestion takes the question from args, an interactive prompt on a
// TTY, or piped stdin.
func readQuestion(cmd *cobra.Command, args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}

	if in == nil {
		in = os.Stdin
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "? ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read question: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
