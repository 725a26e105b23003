package xlsx

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"compta/internal/core"
	"compta/internal/sheets"

	"github.com/xuri/excelize/v2"
)

// openExisting opens a year workbook for reading. A missing file returns nil.
func (s *Store) openExisting(year int) (*excelize.File, error) {
	path := s.YearPath(year)
	f, err := excelize.OpenFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("open", path, err)
	}
	return f, nil
}

// ReadMonth returns the rows of one month sheet.
func (s *Store) ReadMonth(ctx context.Context, p core.Period) ([]core.TransactionRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f, err := s.openExisting(p.Year)
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()

	sheet := p.SheetName()
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, &sheets.StorageError{Op: "lookup sheet " + sheet, Path: s.YearPath(p.Year), Err: err}
	}
	if idx < 0 {
		return nil, nil
	}
	raw, err := readRaw(f, sheet)
	if err != nil {
		return nil, &sheets.StorageError{Op: "read sheet " + sheet, Path: s.YearPath(p.Year), Err: err}
	}
	return s.decode(ctx, sheet, raw), nil
}

// ReadYear returns every month sheet of a year keyed by month.
func (s *Store) ReadYear(ctx context.Context, year int) (map[int][]core.TransactionRecord, error) {
	out := map[int][]core.TransactionRecord{}
	f, err := s.openExisting(year)
	if err != nil || f == nil {
		return out, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		p, err := core.ParseSheetName(sheet)
		if err != nil || p.Year != year {
			continue
		}
		raw, err := readRaw(f, sheet)
		if err != nil {
			return nil, &sheets.StorageError{Op: "read sheet " + sheet, Path: s.YearPath(year), Err: err}
		}
		out[p.Month] = s.decode(ctx, sheet, raw)
	}
	return out, nil
}

// ListPeriods scans the storage directory for year workbooks and returns
// every month sheet they contain, oldest first.
func (s *Store) ListPeriods(ctx context.Context) ([]core.Period, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &sheets.StorageError{Op: "list", Path: s.dir, Err: err}
	}

	var out []core.Period
	for _, e := range entries {
		year, ok := parseYearFile(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := s.openExisting(year)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		for _, sheet := range f.GetSheetList() {
			if p, err := core.ParseSheetName(sheet); err == nil && p.Year == year {
				out = append(out, p)
			}
		}
		f.Close()
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

func parseYearFile(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, fileExt)
	if !ok || len(digits) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(digits)
	if err != nil || year < 1 {
		return 0, false
	}
	return year, true
}
