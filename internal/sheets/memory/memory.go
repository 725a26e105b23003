package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"compta/internal/core"
	"compta/internal/ledger"
	"compta/internal/sheets"
)

// Store keeps month sheets in memory. Locked simulates another program
// holding the year file for a number of attempts.
type Store struct {
	mu     sync.Mutex
	months map[core.Period][]core.TransactionRecord
	locked map[int]int
}

func New() *Store {
	return &Store{
		months: map[core.Period][]core.TransactionRecord{},
		locked: map[int]int{},
	}
}

// Lock makes the next n append attempts for year fail with a lock conflict.
func (s *Store) Lock(year, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[year] = n
}

// Append stores the record and returns the derived values of its month.
func (s *Store) Append(ctx context.Context, rec core.TransactionRecord, accounts ledger.AccountLister, decide sheets.RetryDecider) (sheets.AppendResult, error) {
	if err := rec.Validate(); err != nil {
		return sheets.AppendResult{}, fmt.Errorf("invalid record: %w", err)
	}
	p := rec.Date.Period()

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; s.locked[p.Year] > 0; attempt++ {
		s.locked[p.Year]--
		err := fmt.Errorf("%w: year %d", sheets.ErrLockConflict, p.Year)
		if ctx.Err() != nil || decide == nil || !decide(ctx, attempt, err) || ctx.Err() != nil {
			return sheets.AppendResult{}, fmt.Errorf("%w: %w", sheets.ErrAppendCancelled, err)
		}
	}

	s.months[p] = append(s.months[p], rec)
	rows := s.months[p]
	row := len(rows) + 1
	return sheets.AppendResult{
		Period:  p,
		Ref:     fmt.Sprintf("mem:%s!A%d", p.SheetName(), row),
		Row:     row,
		Derived: sheets.Derive(rows, accounts),
	}, nil
}

func (s *Store) ReadMonth(_ context.Context, p core.Period) ([]core.TransactionRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.months[p]), nil
}

func (s *Store) ReadYear(_ context.Context, year int) (map[int][]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int][]core.TransactionRecord{}
	for p, rows := range s.months {
		if p.Year == year {
			out[p.Month] = slices.Clone(rows)
		}
	}
	return out, nil
}

func (s *Store) ListPeriods(_ context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.months))
	for p := range s.months {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b core.Period) int {
		if a.Before(b) {
			return -1
		}
		if b.Before(a) {
			return 1
		}
		return 0
	})
	return out, nil
}
