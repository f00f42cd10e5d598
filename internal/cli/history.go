package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alligator/jqawk/internal/config"
	"github.com/Alligator/jqawk/internal/history"
)

func newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded by the HTTP execution service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records to show")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := history.OpenSQLStore(cfg.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "error: " + rec.Error
		}
		fmt.Fprintf(out, "#%d [%s] %s %q (selector %q)\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"), status, rec.Source, rec.Selector)
	}
	return nil
}
