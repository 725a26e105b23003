package sheets

import (
	"context"
	"errors"
	"fmt"

	"compta/internal/chart"
	"compta/internal/core"
	"compta/internal/ledger"
)

var (
	// ErrLockConflict means another program holds the year file.
	ErrLockConflict = errors.New("ledger file is locked by another program")
	// ErrAppendCancelled means the caller declined to retry a locked write.
	ErrAppendCancelled = errors.New("append cancelled")
)

// StorageError wraps a filesystem or workbook failure that is not a lock.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RetryDecider is asked whether a locked write should be attempted again.
// attempt starts at 1 and err is the lock error of that attempt.
type RetryDecider func(ctx context.Context, attempt int, err error) bool

// AppendResult describes a saved row and the values derived from its sheet.
type AppendResult struct {
	Period  core.Period
	Ref     string
	Row     int
	Derived Derived
	// DerivedErr collects failures writing derived tables. The row itself
	// was saved.
	DerivedErr error
}

// Ports for outbound adapters.
type (
	TransactionAppender interface {
		Append(ctx context.Context, rec core.TransactionRecord, accounts ledger.AccountLister, decide RetryDecider) (AppendResult, error)
	}

	// MonthReader returns the rows of one month sheet, empty when the sheet
	// or its year file does not exist.
	MonthReader interface {
		ReadMonth(ctx context.Context, p core.Period) ([]core.TransactionRecord, error)
	}

	// YearReader returns every month sheet of a year keyed by month.
	YearReader interface {
		ReadYear(ctx context.Context, year int) (map[int][]core.TransactionRecord, error)
	}

	// ArchiveLister returns every stored period in ascending order.
	ArchiveLister interface {
		ListPeriods(ctx context.Context) ([]core.Period, error)
	}

	// Ledger is the full store a LedgerService works against.
	Ledger interface {
		TransactionAppender
		MonthReader
		YearReader
		ArchiveLister
	}

	// MonthMirror copies a month's rows to a secondary destination.
	MonthMirror interface {
		PushMonth(ctx context.Context, p core.Period, rows []core.TransactionRecord) (ref string, err error)
	}
)

// Derived is everything recomputed from a sheet's rows after a write.
type Derived struct {
	Balances  ledger.Balances
	Breakdown ledger.Breakdown
	Chart     chart.Data
}

// Derive recomputes balances, category totals and chart series from scratch.
func Derive(rows []core.TransactionRecord, accounts ledger.AccountLister) Derived {
	b := ledger.Aggregate(rows)
	return Derived{
		Balances:  ledger.ComputeBalances(rows, accounts),
		Breakdown: b,
		Chart:     chart.Build(b, rows),
	}
}
