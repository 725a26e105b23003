package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"compta/internal/core"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List and manage current and savings accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		doc := app.Service.Settings()
		for _, kind := range []core.AccountKind{core.Current, core.Savings} {
			fmt.Fprintf(out, "%s:\n", kind)
			for _, name := range app.Service.ListAccounts(kind) {
				marker := " "
				if name == doc.LastCurrent || name == doc.LastSavings {
					marker = "*"
				}
				fmt.Fprintf(out, " %s %s\n", marker, name)
			}
		}
		if links := app.Service.Links(); len(links) > 0 {
			fmt.Fprintln(out, "links:")
			for _, l := range links {
				fmt.Fprintf(out, "   %s <- %s\n", l.Savings, l.Current)
			}
		}
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add current|savings NAME",
	Short: "Register an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := core.ParseAccountKind(args[0])
		if err != nil {
			return err
		}
		added, err := app.Service.AddAccount(kind, strings.TrimSpace(args[1]))
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("%s account %q already exists or is blank", kind, args[1])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s account %q\n", kind, args[1])
		return nil
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove current|savings NAME",
	Short: "Unregister an account; rows that mention it are kept",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := core.ParseAccountKind(args[0])
		if err != nil {
			return err
		}
		removed, err := app.Service.RemoveAccount(kind, args[1])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s account %q not found", kind, args[1])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s account %q\n", kind, args[1])
		return nil
	},
}

var accountsLinkCmd = &cobra.Command{
	Use:   "link SAVINGS CURRENT",
	Short: "Use CURRENT as the default source account of SAVINGS",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		linked, err := app.Service.LinkSavings(args[0], args[1])
		if err != nil {
			return err
		}
		if !linked {
			return fmt.Errorf("cannot link %q to %q: both accounts must exist", args[0], args[1])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Linked %q to %q\n", args[0], args[1])
		return nil
	},
}

var storageDirCmd = &cobra.Command{
	Use:   "storage-dir [DIR]",
	Short: "Show or change the directory holding the yearly workbooks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			dir := app.Service.Settings().StorageDir
			if dir == "" {
				dir = cfg.DataDir
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		}
		if err := app.Service.SetStorageDir(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Workbooks will be stored in %s\n", args[0])
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsLinkCmd)
}
