package xlsx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"compta/internal/core"
	"compta/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func record(y, m, d int, label, amount string, cat core.Category, dir core.Direction, tr core.Transfer) core.TransactionRecord {
	return core.TransactionRecord{
		Date:      core.NewDate(y, m, d),
		Label:     label,
		Amount:    decimal.RequireFromString(amount),
		Category:  cat,
		Direction: dir,
		Transfer:  tr,
	}
}

func groceries(day int, amount string) core.TransactionRecord {
	return record(2025, 3, day, "Courses", amount, core.Groceries, core.Outflow, core.Direct{Account: "C"})
}

func cellValue(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("get %s!%s: %v", sheet, cell, err)
	}
	return v
}

func TestAppendCreatesWorkbookLazily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	s := New(dir)
	ctx := context.Background()

	periods, err := s.ListPeriods(ctx)
	if err != nil || len(periods) != 0 {
		t.Fatalf("expected no periods, got %v err=%v", periods, err)
	}
	rows, err := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3})
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty month, got %v err=%v", rows, err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("reads must not create the storage directory")
	}

	reg := core.NewAccountRegistry([]string{"C"}, nil)
	res, err := s.Append(ctx, groceries(4, "12.50"), reg, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if res.Row != 2 || res.Ref != "03_2025!A2" || res.DerivedErr != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	path := filepath.Join(dir, "Compta_2025.xlsx")
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if list := f.GetSheetList(); len(list) != 1 || list[0] != "03_2025" {
		t.Fatalf("unexpected sheets %v", list)
	}
	f.Close()
	if got := cellValue(t, path, "03_2025", "A1"); got != "Date" {
		t.Fatalf("header A1 = %q", got)
	}
	if got := cellValue(t, path, "03_2025", "G2"); got != "C" {
		t.Fatalf("transfer cell = %q", got)
	}
}

func TestAppendRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C"}, []string{"Livret"})

	want := record(2025, 6, 15, "Virement livret", "123.45", core.SavingsCat, core.Outflow, core.Move{From: "C", To: "Livret"})
	want.Recurring = true
	if _, err := s.Append(ctx, want, reg, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 6})
	if err != nil || len(rows) != 1 {
		t.Fatalf("read month: rows=%v err=%v", rows, err)
	}
	got := rows[0]
	if !got.Date.Equal(want.Date.Time) || got.Label != want.Label || !got.Amount.Equal(want.Amount) ||
		got.Category != want.Category || got.Direction != want.Direction || !got.Recurring ||
		got.Transfer != want.Transfer {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestAppendMonotonicWithDerivedRegion(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C", "D", "E"}, []string{"S"})

	// The balances table is taller than the ledger for the whole test.
	for i := 0; i < 5; i++ {
		res, err := s.Append(ctx, groceries(i+1, "10"), reg, nil)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if res.Row != i+2 {
			t.Fatalf("append %d landed on row %d, want %d", i, res.Row, i+2)
		}
	}

	rows, err := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3})
	if err != nil || len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d err=%v", len(rows), err)
	}
	for i, r := range rows {
		if r.Date.Day() != i+1 {
			t.Fatalf("row %d out of order: day %d", i, r.Date.Day())
		}
	}

	path := s.YearPath(2025)
	if got := cellValue(t, path, "03_2025", "I1"); got != "Compte" {
		t.Fatalf("I1 = %q", got)
	}
	if got := cellValue(t, path, "03_2025", "J2"); got != "-50" {
		t.Fatalf("balance of C = %q, want -50", got)
	}
}

func TestAppendClearsStaleDerivedCells(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	if _, err := s.Append(ctx, groceries(1, "5"), core.NewAccountRegistry([]string{"C", "D", "E"}, nil), nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	path := s.YearPath(2025)
	// Three current accounts push the last counter to row 13.
	if got := cellValue(t, path, "03_2025", "I13"); got == "" {
		t.Fatalf("expected counters down to row 13")
	}

	if _, err := s.Append(ctx, groceries(2, "5"), core.NewAccountRegistry([]string{"C"}, nil), nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	for _, cell := range []string{"I12", "I13", "J13"} {
		if got := cellValue(t, path, "03_2025", cell); got != "" {
			t.Fatalf("stale derived cell %s = %q", cell, got)
		}
	}
	if got := cellValue(t, path, "03_2025", "J2"); got != "-10" {
		t.Fatalf("balance of C = %q, want -10", got)
	}
}

func TestAppendLockedRetry(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	lock := filepath.Join(dir, "~$Compta_2025.xlsx")
	if err := os.WriteFile(lock, []byte("owner"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	var attempts []int
	decide := func(_ context.Context, attempt int, err error) bool {
		if !errors.Is(err, sheets.ErrLockConflict) {
			t.Fatalf("decider got %v, want lock conflict", err)
		}
		attempts = append(attempts, attempt)
		if attempt == 2 {
			os.Remove(lock)
		}
		return true
	}

	res, err := s.Append(context.Background(), groceries(1, "1"), core.NewAccountRegistry([]string{"C"}, nil), decide)
	if err != nil {
		t.Fatalf("append after retry: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected attempts %v", attempts)
	}
	if res.Row != 2 {
		t.Fatalf("row = %d", res.Row)
	}
}

func TestAppendLockedDeclined(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := os.WriteFile(filepath.Join(dir, "~$Compta_2025.xlsx"), nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	_, err := s.Append(context.Background(), groceries(1, "1"), core.NewAccountRegistry([]string{"C"}, nil),
		func(context.Context, int, error) bool { return false })
	if !errors.Is(err, sheets.ErrAppendCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(s.YearPath(2025)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("nothing must be written when the retry is declined")
	}
}

func TestAppendLockedContextCancelled(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := os.WriteFile(filepath.Join(dir, "~$Compta_2025.xlsx"), nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := s.Append(ctx, groceries(1, "1"), core.NewAccountRegistry([]string{"C"}, nil),
		func(context.Context, int, error) bool { calls++; return true })
	if !errors.Is(err, sheets.ErrAppendCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("decider must not be asked after cancellation")
	}
}

func TestAppendStorageError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(blocker)
	_, err := s.Append(context.Background(), groceries(1, "1"), core.NewAccountRegistry([]string{"C"}, nil), nil)
	var se *sheets.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestAppendUncreatableDirectory(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(parent, 0o555); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.Chmod(parent, 0o755) })
	dir := filepath.Join(parent, "ledger")
	if err := os.Mkdir(dir, 0o755); err == nil {
		os.Remove(dir)
		t.Skip("directory permissions are not enforced for this user")
	}

	calls := 0
	decide := func(context.Context, int, error) bool {
		calls++
		return true
	}
	_, err := New(dir).Append(context.Background(), groceries(1, "1"), core.NewAccountRegistry([]string{"C"}, nil), decide)
	var se *sheets.StorageError
	if !errors.As(err, &se) || se.Op != "create directory" {
		t.Fatalf("expected create directory StorageError, got %v", err)
	}
	if errors.Is(err, sheets.ErrLockConflict) || calls != 0 {
		t.Fatalf("an uncreatable directory is not a lock conflict (calls=%d): %v", calls, err)
	}
}

func TestAppendAmountPrecision(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C"}, nil)

	for _, amount := range []string{"1234567.89", "0.1", "0.2", "99999999999.99"} {
		if _, err := s.Append(ctx, groceries(1, amount), reg, nil); err != nil {
			t.Fatalf("append %s: %v", amount, err)
		}
	}
	rows, err := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3})
	if err != nil || len(rows) != 4 {
		t.Fatalf("read month: rows=%d err=%v", len(rows), err)
	}
	for i, want := range []string{"1234567.89", "0.1", "0.2", "99999999999.99"} {
		if !rows[i].Amount.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("row %d amount = %s, want %s", i, rows[i].Amount, want)
		}
	}

	_, err = s.Append(ctx, groceries(2, "12345678901234567.89"), reg, nil)
	if !errors.Is(err, core.ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision, got %v", err)
	}
	if rows, _ := s.ReadMonth(ctx, core.Period{Year: 2025, Month: 3}); len(rows) != 4 {
		t.Fatalf("rejected amount must not be written, got %d rows", len(rows))
	}
}

func TestListPeriodsAndReadYear(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	reg := core.NewAccountRegistry([]string{"C"}, nil)
	for _, r := range []core.TransactionRecord{
		record(2025, 3, 2, "a", "1", core.Other, core.Outflow, core.Direct{Account: "C"}),
		record(2024, 12, 31, "b", "2", core.Other, core.Outflow, core.Direct{Account: "C"}),
		record(2025, 1, 9, "c", "3", core.Salary, core.Inflow, core.Direct{Account: "C"}),
		record(2025, 3, 20, "d", "4", core.Other, core.Outflow, core.Direct{Account: "C"}),
	} {
		if _, err := s.Append(ctx, r, reg, nil); err != nil {
			t.Fatalf("append %s: %v", r.Label, err)
		}
	}

	periods, err := s.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	want := []core.Period{{Year: 2024, Month: 12}, {Year: 2025, Month: 1}, {Year: 2025, Month: 3}}
	if len(periods) != len(want) {
		t.Fatalf("periods = %v, want %v", periods, want)
	}
	for i := range want {
		if periods[i] != want[i] {
			t.Fatalf("periods = %v, want %v", periods, want)
		}
	}

	year, err := s.ReadYear(ctx, 2025)
	if err != nil {
		t.Fatalf("read year: %v", err)
	}
	if len(year) != 2 || len(year[1]) != 1 || len(year[3]) != 2 {
		t.Fatalf("unexpected year contents %v", year)
	}
}

func TestNextRowIgnoresDerivedColumns(t *testing.T) {
	raw := [][]string{
		{"Date", "Libellé", "", "", "", "", "", "", "Compte"},
		{"2025-03-01", "x", "1", "Courses", "Sortie", "", "C", "", "C"},
		{"", "", "", "", "", "", "", "", "Total Courant"},
		{"", "", "", "", "", "", "", "", "Total Épargne"},
	}
	if got := nextRow(raw); got != 3 {
		t.Fatalf("nextRow = %d, want 3", got)
	}
	if got := nextRow(raw[:1]); got != 2 {
		t.Fatalf("nextRow on header only = %d, want 2", got)
	}
}

func TestDecodeRowsSkipsMalformed(t *testing.T) {
	raw := [][]string{
		{"Date"},
		{"2025-03-01", "ok", "1,5", "Courses", "Sortie", "oui", "C"},
		{"garbage", "bad", "1", "Courses", "Sortie", "", "C"},
		{"45717", "serial", "2", "Salaire", "Entrée", "", "C"},
	}
	rows, errs := decodeRows(raw)
	if len(rows) != 2 || len(errs) != 1 {
		t.Fatalf("rows=%d errs=%v", len(rows), errs)
	}
	if !rows[0].Recurring || rows[0].Amount.String() != "1.5" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Date.ISO() != "2025-03-01" {
		t.Fatalf("serial date decoded as %s", rows[1].Date.ISO())
	}
}
