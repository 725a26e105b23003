package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List every month sheet in the storage directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		periods, err := app.Service.Archive(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(periods) == 0 {
			fmt.Fprintln(out, "No month sheets yet")
			return nil
		}
		year := 0
		for _, p := range periods {
			if p.Year != year {
				year = p.Year
				fmt.Fprintf(out, "Compta_%d.xlsx\n", year)
			}
			fmt.Fprintf(out, "  %s\n", p.SheetName())
		}
		return nil
	},
}
