package ledger

import (
	"slices"

	"compta/internal/core"

	"github.com/shopspring/decimal"
)

// CategoryTotals holds one category's summed inflow and outflow.
type CategoryTotals struct {
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// Breakdown is the CategoryAggregator output.
type Breakdown struct {
	Totals map[core.Category]CategoryTotals
	// Seen lists every category in first-appearance order.
	Seen []core.Category
	// OutflowOrder and InflowOrder list categories with a non-zero total of
	// that direction, ordered by their first row of that direction, so chart
	// axes stay stable across recomputations.
	OutflowOrder []core.Category
	InflowOrder  []core.Category
	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
}

// Aggregate totals rows per category. Savings rows count like any other
// category here; their transfer effect is handled by ComputeBalances.
func Aggregate(rows []core.TransactionRecord) Breakdown {
	b := Breakdown{Totals: map[core.Category]CategoryTotals{}}
	var inSeen, outSeen []core.Category
	for _, r := range rows {
		t, seen := b.Totals[r.Category]
		if !seen {
			b.Seen = append(b.Seen, r.Category)
		}
		switch r.Direction {
		case core.Inflow:
			if !slices.Contains(inSeen, r.Category) {
				inSeen = append(inSeen, r.Category)
			}
			t.Inflow = t.Inflow.Add(r.Amount)
			b.TotalInflow = b.TotalInflow.Add(r.Amount)
		case core.Outflow:
			if !slices.Contains(outSeen, r.Category) {
				outSeen = append(outSeen, r.Category)
			}
			t.Outflow = t.Outflow.Add(r.Amount)
			b.TotalOutflow = b.TotalOutflow.Add(r.Amount)
		}
		b.Totals[r.Category] = t
	}
	for _, c := range outSeen {
		if !b.Totals[c].Outflow.IsZero() {
			b.OutflowOrder = append(b.OutflowOrder, c)
		}
	}
	for _, c := range inSeen {
		if !b.Totals[c].Inflow.IsZero() {
			b.InflowOrder = append(b.InflowOrder, c)
		}
	}
	return b
}
