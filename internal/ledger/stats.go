package ledger

import (
	"cmp"
	"slices"

	"compta/internal/core"

	"github.com/shopspring/decimal"
)

// KPIs separates real income and spending from internal savings movements.
type KPIs struct {
	RealIncome         Counter
	RealOutflow        Counter
	RealNet            decimal.Decimal
	SavingsDeposits    Counter
	SavingsWithdrawals Counter
	SavingsNetChange   decimal.Decimal
	// SavingsRate is deposits as a percentage of real income, 0 without income.
	SavingsRate decimal.Decimal
	Recurring   Counter
}

var hundred = decimal.NewFromInt(100)

// ComputeKPIs classifies transfer rows as savings movements and every other
// row as real income or outflow. Recurring is the subset of real outflow
// flagged as a recurring debit.
func ComputeKPIs(rows []core.TransactionRecord) KPIs {
	var k KPIs
	for _, r := range rows {
		if r.IsTransfer() {
			if r.Direction == core.Outflow {
				k.SavingsDeposits.add(r.Amount)
			} else {
				k.SavingsWithdrawals.add(r.Amount)
			}
			continue
		}
		if r.Direction == core.Inflow {
			k.RealIncome.add(r.Amount)
			continue
		}
		k.RealOutflow.add(r.Amount)
		if r.Recurring {
			k.Recurring.add(r.Amount)
		}
	}
	k.RealNet = k.RealIncome.Sum.Sub(k.RealOutflow.Sum)
	k.SavingsNetChange = k.SavingsDeposits.Sum.Sub(k.SavingsWithdrawals.Sum)
	if k.RealIncome.Sum.IsPositive() {
		k.SavingsRate = k.SavingsDeposits.Sum.Mul(hundred).Div(k.RealIncome.Sum).Round(2)
	}
	return k
}

// LabelTotal is a summed amount for one label.
type LabelTotal struct {
	Label string
	Total decimal.Decimal
	Count int
}

// RecurringByLabel groups recurring real outflows by label, largest first.
func RecurringByLabel(rows []core.TransactionRecord) []LabelTotal {
	var out []LabelTotal
	pos := map[string]int{}
	for _, r := range rows {
		if !r.Recurring || r.Direction != core.Outflow || r.IsTransfer() {
			continue
		}
		i, ok := pos[r.Label]
		if !ok {
			i = len(out)
			pos[r.Label] = i
			out = append(out, LabelTotal{Label: r.Label})
		}
		out[i].Total = out[i].Total.Add(r.Amount)
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b LabelTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return out
}

// SavingsMovement summarises transfers touching one savings account.
type SavingsMovement struct {
	Account     string
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
	Net         decimal.Decimal
}

// SavingsByAccount totals deposits and withdrawals per savings account, in
// first-appearance order. The savings side of a Move is its destination for
// an outflow row and its source for an inflow row.
func SavingsByAccount(rows []core.TransactionRecord) []SavingsMovement {
	var out []SavingsMovement
	pos := map[string]int{}
	for _, r := range rows {
		if !r.IsTransfer() {
			continue
		}
		_, name := r.Sides()
		i, seen := pos[name]
		if !seen {
			i = len(out)
			pos[name] = i
			out = append(out, SavingsMovement{Account: name})
		}
		if r.Direction == core.Outflow {
			out[i].Deposits = out[i].Deposits.Add(r.Amount)
		} else {
			out[i].Withdrawals = out[i].Withdrawals.Add(r.Amount)
		}
		out[i].Net = out[i].Deposits.Sub(out[i].Withdrawals)
	}
	return out
}

// MonthPoint is one month of a yearly series.
type MonthPoint struct {
	Month       int
	RealIncome  decimal.Decimal
	RealOutflow decimal.Decimal
	Recurring   decimal.Decimal
	RealNet     decimal.Decimal
}

// MonthlySeries builds a 12-point series from rows keyed by month (1-12).
// Months without rows are zero.
func MonthlySeries(byMonth map[int][]core.TransactionRecord) []MonthPoint {
	out := make([]MonthPoint, 12)
	for i := range out {
		k := ComputeKPIs(byMonth[i+1])
		out[i] = MonthPoint{
			Month:       i + 1,
			RealIncome:  k.RealIncome.Sum,
			RealOutflow: k.RealOutflow.Sum,
			Recurring:   k.Recurring.Sum,
			RealNet:     k.RealNet,
		}
	}
	return out
}

// SortByDate orders rows by date, keeping sheet order for equal dates.
func SortByDate(rows []core.TransactionRecord) []core.TransactionRecord {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b core.TransactionRecord) int {
		return cmp.Compare(a.Date.Unix(), b.Date.Unix())
	})
	return out
}
