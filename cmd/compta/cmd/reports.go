package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"compta/internal/chart"
	"compta/internal/core"
	"compta/internal/ledger"
	"compta/internal/services"
)

var (
	seriesYear   int
	scopeFlag    string
	balancesJSON bool
	balanceOf    string
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show account balances of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := selectedPeriod()
		if err != nil {
			return err
		}
		b, err := app.Service.Balances(cmd.Context(), p)
		if err != nil {
			return err
		}
		if balanceOf != "" {
			v, ok := b.Of(balanceOf)
			if !ok {
				return fmt.Errorf("unknown account %q", balanceOf)
			}
			fmt.Fprintln(cmd.OutOrStdout(), core.FormatAmount(v))
			return nil
		}
		if balancesJSON {
			return printBalancesJSON(cmd.OutOrStdout(), b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", p.SheetName())
		printBalances(cmd.OutOrStdout(), b)
		return nil
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Show totals per category of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := selectedPeriod()
		if err != nil {
			return err
		}
		st, err := scopedMonth(cmd, p)
		if err != nil {
			return err
		}
		b := st.Derived.Breakdown
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Catégorie\tEntrées\tSorties")
		for _, c := range b.Seen {
			t := b.Totals[c]
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Label(), core.FormatAmount(t.Inflow), core.FormatAmount(t.Outflow))
		}
		fmt.Fprintf(w, "Total\t%s\t%s\n", core.FormatAmount(b.TotalInflow), core.FormatAmount(b.TotalOutflow))
		return w.Flush()
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Show the chart series of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := selectedPeriod()
		if err != nil {
			return err
		}
		data, err := app.Service.CategoryBreakdown(cmd.Context(), p)
		if err != nil {
			return err
		}
		printChart(cmd.OutOrStdout(), data)
		return nil
	},
}

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Show income, spending and savings indicators of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := selectedPeriod()
		if err != nil {
			return err
		}
		st, err := scopedMonth(cmd, p)
		if err != nil {
			return err
		}
		k := st.KPIs
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%s\n\n", p.SheetName())
		fmt.Fprintf(w, "Revenus\t%s\t(%d)\n", core.FormatAmount(k.RealIncome.Sum), k.RealIncome.Count)
		fmt.Fprintf(w, "Dépenses\t%s\t(%d)\n", core.FormatAmount(k.RealOutflow.Sum), k.RealOutflow.Count)
		fmt.Fprintf(w, "Solde réel\t%s\t\n", core.FormatAmount(k.RealNet))
		fmt.Fprintf(w, "Versements épargne\t%s\t(%d)\n", core.FormatAmount(k.SavingsDeposits.Sum), k.SavingsDeposits.Count)
		fmt.Fprintf(w, "Retraits épargne\t%s\t(%d)\n", core.FormatAmount(k.SavingsWithdrawals.Sum), k.SavingsWithdrawals.Count)
		fmt.Fprintf(w, "Variation épargne\t%s\t\n", core.FormatAmount(k.SavingsNetChange))
		fmt.Fprintf(w, "Taux d'épargne\t%s %%\t\n", k.SavingsRate.StringFixed(2))
		fmt.Fprintf(w, "Prélèvements\t%s\t(%d)\n", core.FormatAmount(k.Recurring.Sum), k.Recurring.Count)

		if len(st.Recurring) > 0 {
			fmt.Fprintln(w, "\nPrélèvements par libellé\t\t")
			for _, r := range st.Recurring {
				fmt.Fprintf(w, "%s\t%s\t(%d)\n", r.Label, core.FormatAmount(r.Total), r.Count)
			}
		}
		if len(st.Savings) > 0 {
			fmt.Fprintln(w, "\nÉpargne par compte\tVersements\tRetraits\tNet")
			for _, s := range st.Savings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Account,
					core.FormatAmount(s.Deposits), core.FormatAmount(s.Withdrawals), core.FormatAmount(s.Net))
			}
		}
		return w.Flush()
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Show the monthly income and spending series of a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		year := seriesYear
		if year == 0 {
			year = time.Now().Year()
		}
		points, err := app.Service.MonthlySeries(cmd.Context(), year)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Mois\tRevenus\tDépenses\tPrélèvements\tSolde\t")
		for _, pt := range points {
			fmt.Fprintf(w, "%02d_%d\t%s\t%s\t%s\t%s\t\n", pt.Month, year,
				core.FormatAmount(pt.RealIncome), core.FormatAmount(pt.RealOutflow),
				core.FormatAmount(pt.Recurring), core.FormatAmount(pt.RealNet))
		}
		return w.Flush()
	},
}

func init() {
	seriesCmd.Flags().IntVar(&seriesYear, "year", 0, "year (default is the current year)")
	balancesCmd.Flags().BoolVar(&balancesJSON, "json", false, "print balances as a JSON object keyed by account")
	balancesCmd.Flags().StringVar(&balanceOf, "account", "", "print the balance of a single account")
	for _, c := range []*cobra.Command{kpiCmd, breakdownCmd} {
		c.Flags().StringVar(&scopeFlag, "scope", "all", "accounts to include: all, current, current:NAME or savings:NAME")
	}
}

func scopedMonth(cmd *cobra.Command, p core.Period) (services.MonthStats, error) {
	scope, err := ledger.ParseScope(scopeFlag)
	if err != nil {
		return services.MonthStats{}, err
	}
	return app.Service.MonthInScope(cmd.Context(), p, scope)
}

// printBalancesJSON writes {account: amount} with amounts as fixed two-decimal strings.
func printBalancesJSON(out io.Writer, b ledger.Balances) error {
	m := make(map[string]string)
	for name, v := range b.Map() {
		m[name] = core.FormatAmount(v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// printBalances lays balances out like the balance table of a month sheet.
func printBalances(out io.Writer, b ledger.Balances) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Compte\tSolde")
	for _, a := range b.Current {
		fmt.Fprintf(w, "%s\t%s\n", a.Name, core.FormatAmount(a.Balance))
	}
	fmt.Fprintf(w, "Total Courant\t%s\n", core.FormatAmount(b.TotalCurrent))
	for _, a := range b.Savings {
		fmt.Fprintf(w, "%s\t%s\n", a.Name, core.FormatAmount(a.Balance))
	}
	fmt.Fprintf(w, "Total Épargne\t%s\n", core.FormatAmount(b.TotalSavings))
	fmt.Fprintln(w, "\t")
	fmt.Fprintf(w, "Entrées (%d)\t%s\n", b.Inflow.Count, core.FormatAmount(b.Inflow.Sum))
	fmt.Fprintf(w, "Sorties (%d)\t%s\n", b.Outflow.Count, core.FormatAmount(b.Outflow.Sum))
	fmt.Fprintf(w, "Prélèvements (%d)\t%s\n", b.Recurring.Count, core.FormatAmount(b.Recurring.Sum))
	w.Flush()
}

func printChart(out io.Writer, d chart.Data) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	section := func(title string, points []chart.Point) {
		fmt.Fprintf(w, "%s\t\n", title)
		for _, pt := range points {
			fmt.Fprintf(w, "  %s\t%s\n", pt.Label, core.FormatAmount(pt.Value))
		}
	}
	section("Sorties par catégorie", d.OutflowByCategory)
	section("Entrées par catégorie", d.IncomeByCategory)
	section("Totaux", d.Totals)
	fmt.Fprintln(w, "Par jour\tEntrées\tSorties")
	for _, day := range d.Daily {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", day.Date.ISO(), core.FormatAmount(day.Inflow), core.FormatAmount(day.Outflow))
	}
	w.Flush()
}
