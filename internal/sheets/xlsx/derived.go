package xlsx

import (
	"errors"
	"fmt"

	"compta/internal/chart"
	"compta/internal/core"
	"compta/internal/ledger"
	"compta/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// First column of each derived table.
const (
	colBalances   = 9  // I
	colCategories = 12 // L
	colOutflow    = 16 // P
	colIncome     = 19 // S
	colTotals     = 22 // V
	colDaily      = 25 // Y
)

type table struct {
	name   string
	col    int
	header []any
	rows   [][]any
}

// writeDerived clears every cell from column I on and rewrites each table.
// A table that fails does not stop the others.
func writeDerived(f *excelize.File, sheet string, raw [][]string, d sheets.Derived) error {
	if err := clearDerived(f, sheet, raw); err != nil {
		return fmt.Errorf("clear derived region: %w", err)
	}
	var errs []error
	for _, t := range derivedTables(d) {
		if err := t.write(f, sheet); err != nil {
			errs = append(errs, fmt.Errorf("%s table: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

func clearDerived(f *excelize.File, sheet string, raw [][]string) error {
	for r, cells := range raw {
		for c := colBalances - 1; c < len(cells); c++ {
			if cells[c] == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t table) write(f *excelize.File, sheet string) error {
	for i, values := range append([][]any{t.header}, t.rows...) {
		cell, err := excelize.CoordinatesToCellName(t.col, headerRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 { return d.InexactFloat64() }

func derivedTables(d sheets.Derived) []table {
	return []table{
		balancesTable(d.Balances),
		categoryTable(d.Breakdown),
		pointsTable("outflow chart", colOutflow, "Sorties par catégorie", d.Chart.OutflowByCategory),
		pointsTable("income chart", colIncome, "Entrées par catégorie", d.Chart.IncomeByCategory),
		pointsTable("totals chart", colTotals, "Total", d.Chart.Totals),
		dailyTable(d.Chart.Daily),
	}
}

func balancesTable(b ledger.Balances) table {
	t := table{name: "balances", col: colBalances, header: []any{"Compte", "Solde"}}
	for _, ab := range b.Current {
		t.rows = append(t.rows, []any{ab.Name, num(ab.Balance)})
	}
	t.rows = append(t.rows, []any{"Total Courant", num(b.TotalCurrent)})
	for _, ab := range b.Savings {
		t.rows = append(t.rows, []any{ab.Name, num(ab.Balance)})
	}
	t.rows = append(t.rows,
		[]any{"Total Épargne", num(b.TotalSavings)},
		[]any{},
		[]any{"Entrées (nb)", b.Inflow.Count},
		[]any{"Entrées", num(b.Inflow.Sum)},
		[]any{"Sorties (nb)", b.Outflow.Count},
		[]any{"Sorties", num(b.Outflow.Sum)},
		[]any{"Prélèvements (nb)", b.Recurring.Count},
		[]any{"Prélèvements", num(b.Recurring.Sum)},
	)
	return t
}

func categoryTable(b ledger.Breakdown) table {
	t := table{name: "categories", col: colCategories, header: []any{"Catégorie", core.Inflow.Label(), core.Outflow.Label()}}
	for _, c := range b.Seen {
		tot := b.Totals[c]
		t.rows = append(t.rows, []any{c.Label(), num(tot.Inflow), num(tot.Outflow)})
	}
	return t
}

func pointsTable(name string, col int, title string, pts []chart.Point) table {
	t := table{name: name, col: col, header: []any{title, "Montant"}}
	for _, p := range pts {
		t.rows = append(t.rows, []any{p.Label, num(p.Value)})
	}
	return t
}

func dailyTable(days []chart.DayPoint) table {
	t := table{name: "daily", col: colDaily, header: []any{"Date", core.Inflow.Label(), core.Outflow.Label()}}
	for _, d := range days {
		t.rows = append(t.rows, []any{d.Date.ISO(), num(d.Inflow), num(d.Outflow)})
	}
	return t
}
