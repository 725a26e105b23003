// Package cmd provides CLI commands for compta.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"compta/internal/cli"
	"compta/internal/config"
	"compta/internal/core"
	"compta/internal/log"
)

var (
	envFile    string
	debug      bool
	periodFlag string

	cfg    *config.Config
	logger *log.Logger
	app    *cli.Ledger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "compta",
	Short: "Monthly bookkeeping in yearly Excel workbooks",
	Long: `compta records transactions into one Excel workbook per year
(Compta_YYYY.xlsx, one sheet per month named MM_YYYY) and keeps the
balances, category totals and chart tables of each sheet up to date.

Example:
  compta add --label "Courses" --amount 42,50 --category Courses
  compta add --label "Livret" --amount 200 --category Épargne --savings "Livret A"
  compta balances --period 05_2025
  compta kpi`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		} else {
			cli.LoadEnvFile()
		}

		c, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		level := c.LogLevel
		if debug {
			level = "debug"
		}
		logger = cli.SetupLogger(level, os.Stderr)

		l, err := cli.OpenLedger(cmd.Context(), logger, c)
		if err != nil {
			return err
		}
		cfg, app = c, l
		cmd.SetContext(log.IntoContext(cmd.Context(), logger))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

// Execute runs the root command until it returns or an interrupt arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&periodFlag, "period", "p", "", "month as MM_YYYY or YYYY-MM (default is the current month)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(breakdownCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(storageDirCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(queueCmd)
}

func selectedPeriod() (core.Period, error) {
	return parsePeriod(periodFlag, time.Now())
}

// parsePeriod accepts a sheet name (MM_YYYY) or YYYY-MM; empty means the
// month of now.
func parsePeriod(s string, now time.Time) (core.Period, error) {
	if s == "" {
		return core.Period{Year: now.Year(), Month: int(now.Month())}, nil
	}
	if p, err := core.ParseSheetName(s); err == nil {
		return p, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid period %q: want MM_YYYY or YYYY-MM", s)
	}
	return core.Period{Year: t.Year(), Month: int(t.Month())}, nil
}
