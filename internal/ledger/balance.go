// Package ledger derives balances and statistics from the transaction rows
// of a month sheet. Every function here is pure: the same rows and the same
// account lists always produce the same result, so callers recompute from
// scratch on every write instead of patching previous results.
package ledger

import (
	"compta/internal/core"

	"github.com/shopspring/decimal"
)

// AccountLister exposes the ordered account names of each kind.
type AccountLister interface {
	Accounts(kind core.AccountKind) []string
}

// AccountBalance is one account's balance after applying all rows.
type AccountBalance struct {
	Name    string
	Kind    core.AccountKind
	Balance decimal.Decimal
}

// Counter is a row count with the summed amount of those rows.
type Counter struct {
	Count int
	Sum   decimal.Decimal
}

func (c *Counter) add(amount decimal.Decimal) {
	c.Count++
	c.Sum = c.Sum.Add(amount)
}

// Balances is the BalanceEngine output.
type Balances struct {
	Current      []AccountBalance
	Savings      []AccountBalance
	TotalCurrent decimal.Decimal
	TotalSavings decimal.Decimal
	Inflow       Counter
	Outflow      Counter
	Recurring    Counter
}

// Combined is the sum of every current and savings balance.
func (b Balances) Combined() decimal.Decimal {
	return b.TotalCurrent.Add(b.TotalSavings)
}

// Of returns the balance of a named account.
func (b Balances) Of(name string) (decimal.Decimal, bool) {
	for _, list := range [][]AccountBalance{b.Current, b.Savings} {
		for _, ab := range list {
			if ab.Name == name {
				return ab.Balance, true
			}
		}
	}
	return decimal.Zero, false
}

// Map returns every balance keyed by account name.
func (b Balances) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.Current)+len(b.Savings))
	for _, list := range [][]AccountBalance{b.Current, b.Savings} {
		for _, ab := range list {
			out[ab.Name] = ab.Balance
		}
	}
	return out
}

// ComputeBalances applies every row to the currently known accounts.
//
// A Move subtracts from its source and adds to its destination; each leg is
// applied only if that account is known, so rows referencing a removed
// account still move money on the account that remains. A Direct row is
// signed by its direction. A name registered as both current and savings is
// only credited to the current account.
func ComputeBalances(rows []core.TransactionRecord, accounts AccountLister) Balances {
	var out Balances
	index := map[string]*decimal.Decimal{}

	current := accounts.Accounts(core.Current)
	savings := accounts.Accounts(core.Savings)
	out.Current = make([]AccountBalance, len(current))
	for i, name := range current {
		out.Current[i] = AccountBalance{Name: name, Kind: core.Current}
		if _, dup := index[name]; !dup {
			index[name] = &out.Current[i].Balance
		}
	}
	out.Savings = make([]AccountBalance, len(savings))
	for i, name := range savings {
		out.Savings[i] = AccountBalance{Name: name, Kind: core.Savings}
		if _, dup := index[name]; !dup {
			index[name] = &out.Savings[i].Balance
		}
	}

	apply := func(name string, delta decimal.Decimal) {
		if bal, ok := index[name]; ok {
			*bal = bal.Add(delta)
		}
	}

	for _, r := range rows {
		switch t := r.Transfer.(type) {
		case core.Move:
			apply(t.From, r.Amount.Neg())
			apply(t.To, r.Amount)
		case core.Direct:
			apply(t.Account, r.SignedAmount())
		}

		switch r.Direction {
		case core.Inflow:
			out.Inflow.add(r.Amount)
		case core.Outflow:
			out.Outflow.add(r.Amount)
		}
		if r.Recurring {
			out.Recurring.add(r.Amount)
		}
	}

	for _, ab := range out.Current {
		out.TotalCurrent = out.TotalCurrent.Add(ab.Balance)
	}
	for _, ab := range out.Savings {
		out.TotalSavings = out.TotalSavings.Add(ab.Balance)
	}
	return out
}
