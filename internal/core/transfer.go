package core

import (
	"fmt"
	"strings"
)

// transferSep separates source and destination in the workbook transfer column.
const transferSep = "->"

// Transfer describes which accounts a row moves money on. It is either
// Direct (one account, signed by the row direction) or Move (from -> to).
type Transfer interface {
	fmt.Stringer
	isTransfer()
}

// Direct applies the row amount to a single account.
type Direct struct {
	Account string
}

// Move takes the amount out of From and puts it into To.
type Move struct {
	From string
	To   string
}

func (Direct) isTransfer() {}
func (Move) isTransfer()   {}

func (d Direct) String() string { return d.Account }

func (m Move) String() string { return m.From + " " + transferSep + " " + m.To }

// ParseTransfer decodes the workbook transfer column.
func ParseTransfer(s string) (Transfer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoTransfer
	}
	from, to, ok := strings.Cut(s, transferSep)
	if !ok {
		return Direct{Account: s}, nil
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, fmt.Errorf("malformed transfer %q", s)
	}
	return Move{From: from, To: to}, nil
}

// ResolveTransfer applies the current/savings transfer table: a savings
// row moves money between the current and savings account in the
// direction opposite to its effect on the current account.
func ResolveTransfer(cat Category, dir Direction, current, savings string) Transfer {
	if !cat.IsSavings() || savings == "" {
		return Direct{Account: current}
	}
	if dir == Inflow {
		return Move{From: savings, To: current}
	}
	return Move{From: current, To: savings}
}
