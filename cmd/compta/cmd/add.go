package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"compta/internal/core"
	"compta/internal/log"
	"compta/internal/sheets"
)

var addFlags struct {
	date      string
	label     string
	amount    string
	category  string
	direction string
	recurring bool
	current   string
	savings   string
	retries   int
	wait      time.Duration
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a transaction to its month sheet",
	Long: `Append one transaction to the sheet of its month, creating the
workbook and the sheet when needed, then recompute the sheet's balances,
category totals and chart tables.

When the workbook is open in another program the command asks whether to
retry. With --retries it retries on its own instead.

Example:
  compta add --date 14-03-2025 --label "Marché" --amount 42,50 --category Courses
  compta add --label Salaire --amount 2100 --category Salaire --direction Entrée
  compta add --label Virement --amount 300 --category Épargne --savings "Livret A"`,
	RunE: runAdd,
}

func init() {
	f := addCmd.Flags()
	f.StringVar(&addFlags.date, "date", "", "date as DD-MM-YYYY (default is today)")
	f.StringVar(&addFlags.label, "label", "", "label")
	f.StringVar(&addFlags.amount, "amount", "", "non-negative amount, comma or dot decimals")
	f.StringVar(&addFlags.category, "category", "", "category, e.g. Courses, Loyer, Épargne")
	f.StringVar(&addFlags.direction, "direction", "", "Entrée or Sortie (default is Sortie)")
	f.BoolVar(&addFlags.recurring, "recurring", false, "mark as a recurring debit")
	f.StringVar(&addFlags.current, "current", "", "current account (default is the last one used)")
	f.StringVar(&addFlags.savings, "savings", "", "savings account for Épargne rows (default is the last one used)")
	f.IntVar(&addFlags.retries, "retries", -1, "retry a locked workbook this many times without asking")
	f.DurationVar(&addFlags.wait, "retry-wait", 2*time.Second, "pause between automatic retries")
}

func runAdd(cmd *cobra.Command, args []string) error {
	d := core.Draft{
		Date:           addFlags.date,
		Label:          addFlags.label,
		Amount:         addFlags.amount,
		Category:       addFlags.category,
		Direction:      addFlags.direction,
		Recurring:      addFlags.recurring,
		CurrentAccount: addFlags.current,
		SavingsAccount: addFlags.savings,
	}
	if d.Date == "" {
		d.Date = time.Now().Format("02-01-2006")
	}
	applyRememberedAccounts(&d)

	decide := promptDecider(cmd.InOrStdin(), cmd.ErrOrStderr())
	if addFlags.retries >= 0 {
		decide = waitDecider(addFlags.retries, addFlags.wait)
	}

	log.FromContext(cmd.Context()).Debug("Submitting transaction",
		log.FieldLabel, d.Label,
		log.FieldAmount, d.Amount,
		log.FieldCategory, d.Category,
		log.FieldDate, d.Date)

	res, err := app.Service.SubmitTransaction(cmd.Context(), d, decide)
	switch {
	case core.IsValidation(err):
		return fmt.Errorf("invalid transaction: %w", err)
	case errors.Is(err, sheets.ErrAppendCancelled):
		return fmt.Errorf("transaction not saved, the workbook is still locked: %w", err)
	case err != nil:
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %s (row %d)\n\n", res.Ref, res.Row)
	printBalances(out, res.Derived.Balances)
	if res.DerivedErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: some summary tables were not updated: %v\n", res.DerivedErr)
	}
	return nil
}

// applyRememberedAccounts fills empty account fields with the last accounts
// used, as long as they are still registered.
func applyRememberedAccounts(d *core.Draft) {
	doc := app.Service.Settings()
	if d.CurrentAccount == "" && slices.Contains(doc.CurrentAccounts, doc.LastCurrent) {
		d.CurrentAccount = doc.LastCurrent
	}
	cat, err := core.ParseCategory(d.Category)
	if err != nil || !cat.IsSavings() {
		return
	}
	if d.SavingsAccount == "" && slices.Contains(doc.SavingsAccounts, doc.LastSavings) {
		d.SavingsAccount = doc.LastSavings
	}
}

// promptDecider asks on out and reads the answer from in.
func promptDecider(in io.Reader, out io.Writer) sheets.RetryDecider {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, attempt int, err error) bool {
		fmt.Fprintf(out, "%v\nClose the workbook in the other program, then retry? [y/N] ", err)
		line, rerr := reader.ReadString('\n')
		if rerr != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "o", "oui":
			return true
		}
		return false
	}
}

// waitDecider retries up to limit times, pausing wait before each retry.
func waitDecider(limit int, wait time.Duration) sheets.RetryDecider {
	return func(ctx context.Context, attempt int, err error) bool {
		if attempt > limit {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}
}
