package xlsx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"compta/internal/core"
	"compta/internal/log"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	headerRow  = 1
	ledgerCols = 7
)

var header = []any{"Date", "Libellé", "Montant", "Catégorie", "Type", "Prélèvement", "Compte"}

const recurringYes = "Oui"

func writeHeader(f *excelize.File, sheet string) error {
	return f.SetSheetRow(sheet, "A1", &header)
}

func readRaw(f *excelize.File, sheet string) ([][]string, error) {
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func hasLedgerData(cells []string) bool {
	for i := 0; i < len(cells) && i < ledgerCols; i++ {
		if strings.TrimSpace(cells[i]) != "" {
			return true
		}
	}
	return false
}

// nextRow returns the row after the last one with data in A to G.
// Derived cells further right never move it.
func nextRow(raw [][]string) int {
	last := headerRow
	for i := headerRow; i < len(raw); i++ {
		if hasLedgerData(raw[i]) {
			last = i + 1
		}
	}
	return last + 1
}

func writeRecord(f *excelize.File, sheet string, row int, rec core.TransactionRecord) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	recurring := ""
	if rec.Recurring {
		recurring = recurringYes
	}
	values := []any{
		rec.Date.ISO(),
		rec.Label,
		rec.Amount.InexactFloat64(),
		rec.Category.Label(),
		rec.Direction.Label(),
		recurring,
		rec.Transfer.String(),
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// decode parses the ledger rows of a sheet. Malformed rows are skipped and
// logged; they still count for nextRow.
func (s *Store) decode(ctx context.Context, sheet string, raw [][]string) []core.TransactionRecord {
	rows, errs := decodeRows(raw)
	for _, err := range errs {
		s.logger.WarnContext(ctx, "Skipping malformed row",
			log.FieldSheet, sheet,
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
	}
	return rows
}

func decodeRows(raw [][]string) ([]core.TransactionRecord, []error) {
	var (
		out  []core.TransactionRecord
		errs []error
	)
	for i := headerRow; i < len(raw); i++ {
		if !hasLedgerData(raw[i]) {
			continue
		}
		rec, err := decodeRow(raw[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

func decodeRow(cells []string) (core.TransactionRecord, error) {
	c := make([]string, ledgerCols)
	copy(c, cells)
	for i := range c {
		c[i] = strings.TrimSpace(c[i])
	}

	date, err := parseDateCell(c[0])
	if err != nil {
		return core.TransactionRecord{}, err
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(c[2], ",", "."))
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, c[2])
	}
	cat, err := core.ParseCategory(c[3])
	if err != nil {
		return core.TransactionRecord{}, err
	}
	dir, err := core.ParseDirection(c[4])
	if err != nil {
		return core.TransactionRecord{}, err
	}
	tr, err := core.ParseTransfer(c[6])
	if err != nil {
		return core.TransactionRecord{}, err
	}
	rec := core.TransactionRecord{
		Date:      date,
		Label:     c[1],
		Amount:    amount,
		Category:  cat,
		Direction: dir,
		Recurring: parseRecurring(c[5]),
		Transfer:  tr,
	}
	return rec, rec.Validate()
}

// parseDateCell accepts the ISO text written by the store and, for sheets
// edited by hand, an Excel date serial.
func parseDateCell(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err == nil {
		return d, nil
	}
	serial, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return core.Date{}, err
	}
	t, terr := excelize.ExcelDateToTime(serial, false)
	if terr != nil {
		return core.Date{}, errors.Join(err, terr)
	}
	return core.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

func parseRecurring(s string) bool {
	switch strings.ToLower(s) {
	case "oui", "yes", "true", "1", "x":
		return true
	}
	return false
}
