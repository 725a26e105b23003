package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"compta/internal/core"
	"compta/internal/storage"
)

var errJournalDisabled = errors.New("journal disabled: set SQLITE_DB_PATH")

var retryFailed bool

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List the journaled appends of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := journal()
		if err != nil {
			return err
		}
		p, err := selectedPeriod()
		if err != nil {
			return err
		}
		entries, err := repo.JournalEntries(cmd.Context(), p)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Enregistré\tCellule\tDate\tLibellé\tMontant\tType\tCompte")
		for _, e := range entries {
			r := e.Record
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), e.SheetRef, r.Date.ISO(), r.Label,
				core.FormatAmount(r.Amount), r.Direction.Label(), r.Transfer.String())
		}
		return w.Flush()
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the mirror queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := journal()
		if err != nil {
			return err
		}
		if retryFailed {
			if err := repo.RetryFailed(cmd.Context()); err != nil {
				return err
			}
		}
		stats, err := repo.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pending:    %d\n", stats.Pending)
		fmt.Fprintf(out, "processing: %d\n", stats.Processing)
		fmt.Fprintf(out, "completed:  %d\n", stats.Completed)
		fmt.Fprintf(out, "failed:     %d\n", stats.Failed)
		return nil
	},
}

func init() {
	queueCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "put failed months back in the queue")
}

func journal() (*storage.SQLiteRepository, error) {
	if app.Backend.Journal == nil {
		return nil, errJournalDisabled
	}
	return app.Backend.Journal, nil
}
