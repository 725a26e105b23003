// Package xlsx stores the ledger as one workbook per year, Compta_YYYY.xlsx,
// with one MM_YYYY sheet per month. Columns A to G hold the transaction
// rows; everything from column I on is rewritten after each append.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"compta/internal/core"
	"compta/internal/ledger"
	"compta/internal/log"
	"compta/internal/sheets"

	"github.com/xuri/excelize/v2"
)

const (
	filePrefix   = "Compta_"
	fileExt      = ".xlsx"
	lockPrefix   = "~$"
	defaultSheet = "Sheet1"
)

// Store is a file-backed ledger. Calls are serialised within the process;
// other programs are detected through Office lock files and I/O errors.
type Store struct {
	dir    string
	logger *log.Logger
	mu     sync.Mutex
}

type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l.WithComponent(log.ComponentXLSX)
	}
}

// New returns a store rooted at dir. Nothing is created until the first append.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: log.Discard()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// YearPath returns the workbook path for a year.
func (s *Store) YearPath(year int) string {
	return filepath.Join(s.dir, yearFileName(year))
}

func yearFileName(year int) string {
	return fmt.Sprintf("%s%04d%s", filePrefix, year, fileExt)
}

func (s *Store) lockPath(year int) string {
	return filepath.Join(s.dir, lockPrefix+yearFileName(year))
}

// Append writes rec to its month sheet and rewrites the derived region.
// While the year file is locked, decide is consulted after each attempt;
// declining or a cancelled ctx yields sheets.ErrAppendCancelled and
// nothing is written.
func (s *Store) Append(ctx context.Context, rec core.TransactionRecord, accounts ledger.AccountLister, decide sheets.RetryDecider) (sheets.AppendResult, error) {
	if err := rec.Validate(); err != nil {
		return sheets.AppendResult{}, fmt.Errorf("invalid record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		res, err := s.appendOnce(ctx, rec, accounts)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, sheets.ErrLockConflict) {
			return sheets.AppendResult{}, err
		}

		s.logger.WarnContext(ctx, "Ledger file locked",
			log.FieldFile, s.YearPath(rec.Date.Year()),
			log.FieldAttempt, attempt,
			log.FieldError, err)

		if ctx.Err() != nil || decide == nil || !decide(ctx, attempt, err) || ctx.Err() != nil {
			return sheets.AppendResult{}, fmt.Errorf("%w: %w", sheets.ErrAppendCancelled, err)
		}
	}
}

func (s *Store) appendOnce(ctx context.Context, rec core.TransactionRecord, accounts ledger.AccountLister) (sheets.AppendResult, error) {
	p := rec.Date.Period()
	path := s.YearPath(p.Year)

	if err := s.checkLock(p.Year); err != nil {
		return sheets.AppendResult{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return sheets.AppendResult{}, &sheets.StorageError{Op: "create directory", Path: s.dir, Err: err}
	}

	f, created, err := openOrCreate(path)
	if err != nil {
		return sheets.AppendResult{}, err
	}
	defer f.Close()

	sheet := p.SheetName()
	if err := ensureSheet(f, sheet, created); err != nil {
		return sheets.AppendResult{}, &sheets.StorageError{Op: "create sheet " + sheet, Path: path, Err: err}
	}

	raw, err := readRaw(f, sheet)
	if err != nil {
		return sheets.AppendResult{}, &sheets.StorageError{Op: "read sheet " + sheet, Path: path, Err: err}
	}
	row := nextRow(raw)
	if err := writeRecord(f, sheet, row, rec); err != nil {
		return sheets.AppendResult{}, &sheets.StorageError{Op: "write row", Path: path, Err: err}
	}

	raw, err = readRaw(f, sheet)
	if err != nil {
		return sheets.AppendResult{}, &sheets.StorageError{Op: "read sheet " + sheet, Path: path, Err: err}
	}
	rows := s.decode(ctx, sheet, raw)
	derived := sheets.Derive(rows, accounts)

	derr := writeDerived(f, sheet, raw, derived)
	if derr != nil {
		s.logger.ErrorContext(ctx, "Derived region partially written",
			log.FieldSheet, sheet,
			log.FieldOperation, log.OpDerive,
			log.FieldError, derr)
	}

	if err := save(f, path); err != nil {
		return sheets.AppendResult{}, err
	}

	return sheets.AppendResult{
		Period:     p,
		Ref:        fmt.Sprintf("%s!A%d", sheet, row),
		Row:        row,
		Derived:    derived,
		DerivedErr: derr,
	}, nil
}

func (s *Store) checkLock(year int) error {
	_, err := os.Stat(s.lockPath(year))
	if err == nil {
		return fmt.Errorf("%w: %s is open elsewhere", sheets.ErrLockConflict, yearFileName(year))
	}
	return nil
}

func openOrCreate(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, false, classify("open", path, err)
	}
	return f, false, nil
}

func ensureSheet(f *excelize.File, sheet string, created bool) error {
	if created {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return err
		}
		return writeHeader(f, sheet)
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeHeader(f, sheet)
}

// save writes to a temporary file next to path and renames it into place.
func save(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".compta-*"+fileExt)
	if err != nil {
		return classify("create temp file", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return classify("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return classify("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return classify("replace", path, err)
	}
	return nil
}

// classify maps permission and busy errors on the year file to a lock
// conflict. Directory failures never go through it.
func classify(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY) {
		return fmt.Errorf("%w: %s %s: %v", sheets.ErrLockConflict, op, path, err)
	}
	return &sheets.StorageError{Op: op, Path: path, Err: err}
}
