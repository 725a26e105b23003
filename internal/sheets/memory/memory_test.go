package memory

import (
	"context"
	"errors"
	"testing"

	"compta/internal/core"
	"compta/internal/sheets"

	"github.com/shopspring/decimal"
)

func rec(y, m, d int, amount int64) core.TransactionRecord {
	return core.TransactionRecord{
		Date:      core.NewDate(y, m, d),
		Label:     "t",
		Amount:    decimal.NewFromInt(amount),
		Category:  core.Groceries,
		Direction: core.Outflow,
		Transfer:  core.Direct{Account: "C"},
	}
}

func TestMemoryStoreAppendAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C"}, nil)

	res, err := s.Append(ctx, rec(2025, 3, 1, 10), reg, nil)
	if err != nil || res.Row != 2 || res.Ref != "mem:03_2025!A2" {
		t.Fatalf("unexpected append: res=%+v err=%v", res, err)
	}
	res, err = s.Append(ctx, rec(2025, 3, 2, 5), reg, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if got, _ := res.Derived.Balances.Of("C"); !got.Equal(decimal.NewFromInt(-15)) {
		t.Fatalf("balance = %s, want -15", got)
	}
	if _, err := s.Append(ctx, rec(2024, 11, 2, 5), reg, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, _ := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	periods, _ := s.ListPeriods(ctx)
	if len(periods) != 2 || periods[0].Year != 2024 {
		t.Fatalf("unexpected periods %v", periods)
	}
	year, _ := s.ReadYear(ctx, 2025)
	if len(year) != 1 || len(year[3]) != 2 {
		t.Fatalf("unexpected year %v", year)
	}
}

func TestMemoryStoreLock(t *testing.T) {
	s := New()
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C"}, nil)

	s.Lock(2025, 1)
	_, err := s.Append(ctx, rec(2025, 3, 1, 1), reg, func(context.Context, int, error) bool { return false })
	if !errors.Is(err, sheets.ErrAppendCancelled) || !errors.Is(err, sheets.ErrLockConflict) {
		t.Fatalf("expected cancelled lock conflict, got %v", err)
	}
	if rows, _ := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3}); len(rows) != 0 {
		t.Fatalf("declined append must not store the row")
	}

	s.Lock(2025, 2)
	asked := 0
	if _, err := s.Append(ctx, rec(2025, 3, 1, 1), reg, func(context.Context, int, error) bool { asked++; return true }); err != nil {
		t.Fatalf("append after retries: %v", err)
	}
	if asked != 2 {
		t.Fatalf("decider asked %d times, want 2", asked)
	}
}
