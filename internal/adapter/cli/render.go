package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func renderCommand(deps Dependencies) *cobra.Command {
	var asHTML bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "render <file.md|->",
		Short: "Run the render pipeline on a markdown file",
		Long: `Typesets a markdown file (or stdin with "-") through pandoc/XeLaTeX and
prints the resulting PNG paths. With --html the file is converted to a
standalone HTML document instead, which needs no TeX toolchain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := readMarkdown(args[0], deps.Args.InReader)
			if err != nil {
				return err
			}

			if asHTML {
				return renderHTML(cmd, deps, markdown, outDir)
			}

			if deps.NewRenderer == nil {
				return errors.New("render dependencies not configured")
			}
			renderer, err := deps.NewRenderer(outDir)
			if err != nil {
				return err
			}

			pages, err := renderer.Render(cmd.Context(), markdown)
			if err != nil {
				return err
			}
			for _, page := range pages {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), page)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Convert to a standalone HTML document instead of PNGs")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (PNG mode) or output file (HTML mode)")
	return cmd
}

func renderHTML(cmd *cobra.Command, deps Dependencies, markdown, outPath string) error {
	if deps.HTML == nil {
		return errors.New("html dependencies not configured")
	}

	html, err := deps.HTML.ToHTML(cmd.Context(), markdown)
	if err != nil {
		return err
	}

	if outPath == "" {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), html)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write html: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), outPath)
	return nil
}

func readMarkdown(arg string, in io.Reader) (string, error) {
	if arg == "-" {
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%s is empty", arg)
	}
	return string(data), nil
}
