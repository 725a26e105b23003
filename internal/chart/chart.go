// Package chart turns aggregated month data into plain series a renderer
// can draw. It never draws anything itself.
package chart

import (
	"compta/internal/core"
	"compta/internal/ledger"

	"github.com/shopspring/decimal"
)

// MaxCategoryRows caps each per-category series.
const MaxCategoryRows = 12

// Point is one labelled value.
type Point struct {
	Label string
	Value decimal.Decimal
}

// DayPoint sums one calendar day.
type DayPoint struct {
	Date    core.Date
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// Data holds every series shown for a month.
type Data struct {
	OutflowByCategory []Point
	IncomeByCategory  []Point
	// Totals is always two points: Sorties then Entrées.
	Totals []Point
	Daily  []DayPoint
}

// Build derives chart series from a breakdown and the rows it came from.
func Build(b ledger.Breakdown, rows []core.TransactionRecord) Data {
	d := Data{
		OutflowByCategory: categorySeries(b, b.OutflowOrder, func(t ledger.CategoryTotals) decimal.Decimal { return t.Outflow }),
		IncomeByCategory:  categorySeries(b, b.InflowOrder, func(t ledger.CategoryTotals) decimal.Decimal { return t.Inflow }),
		Totals: []Point{
			{Label: core.Outflow.Label(), Value: b.TotalOutflow},
			{Label: core.Inflow.Label(), Value: b.TotalInflow},
		},
	}

	pos := map[string]int{}
	for _, r := range ledger.SortByDate(rows) {
		key := r.Date.ISO()
		i, ok := pos[key]
		if !ok {
			i = len(d.Daily)
			pos[key] = i
			d.Daily = append(d.Daily, DayPoint{Date: r.Date})
		}
		switch r.Direction {
		case core.Inflow:
			d.Daily[i].Inflow = d.Daily[i].Inflow.Add(r.Amount)
		case core.Outflow:
			d.Daily[i].Outflow = d.Daily[i].Outflow.Add(r.Amount)
		}
	}
	return d
}

func categorySeries(b ledger.Breakdown, order []core.Category, pick func(ledger.CategoryTotals) decimal.Decimal) []Point {
	n := min(len(order), MaxCategoryRows)
	out := make([]Point, 0, n)
	for _, c := range order[:n] {
		out = append(out, Point{Label: c.Label(), Value: pick(b.Totals[c])})
	}
	return out
}
