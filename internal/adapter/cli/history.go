package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCommand(deps Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent archived exchanges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.OpenStore == nil {
				return errors.New("the exchange archive is disabled")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			archive, err := deps.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			exchanges, err := archive.RecentExchanges(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(exchanges) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no archived exchanges")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "WHEN\tUSER\tMODE\tPAGES\tTOKENS\tMODEL\tID")
			for _, ex := range exchanges {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%s\n",
					ex.CreatedAt.UTC().Format(time.RFC3339),
					ex.UserName,
					ex.Mode,
					ex.Pages,
					ex.PromptTokens,
					ex.CompletionTokens,
					ex.Model,
					ex.ExchangeID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum exchanges to list")
	return cmd
}
