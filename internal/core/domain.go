package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Current AccountKind = "current"
	Savings AccountKind = "savings"
)

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// FallbackCurrentAccount is used when no current account is registered.
const FallbackCurrentAccount = "Compte Courant"

type (
	AccountKind string

	Direction string

	Date struct {
		time.Time
	}

	TransactionRecord struct {
		Date      Date
		Label     string
		Amount    decimal.Decimal
		Category  Category
		Direction Direction
		Recurring bool
		Transfer  Transfer
	}

	// Period identifies one month sheet within a year workbook.
	Period struct {
		Year  int
		Month int
	}
)

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountPrecision = errors.New("amount has too many significant digits")
	ErrEmptyLabel      = errors.New("empty label")
	ErrNoTransfer      = errors.New("missing transfer")
)

func (k AccountKind) Valid() bool {
	return k == Current || k == Savings
}

// ParseAccountKind accepts "current"/"courant" and "savings"/"saving"/"epargne".
func ParseAccountKind(s string) (AccountKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current", "courant":
		return Current, nil
	case "savings", "saving", "epargne", "épargne":
		return Savings, nil
	}
	return "", fmt.Errorf("unknown account kind %q", s)
}

// Label returns the historical workbook label ("Entrée"/"Sortie").
func (d Direction) Label() string {
	if d == Inflow {
		return "Entrée"
	}
	return "Sortie"
}

func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inflow", "in", "income", "entrée", "entree":
		return Inflow, nil
	case "outflow", "out", "expense", "sortie":
		return Outflow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Period returns the month sheet the date belongs to.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: int(d.Month())}
}

// ISO formats the date as YYYY-MM-DD, the workbook cell format.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1 {
		return fmt.Errorf("invalid year %d", p.Year)
	}
	return nil
}

// SheetName returns the month sheet name, MM_YYYY.
func (p Period) SheetName() string {
	return fmt.Sprintf("%02d_%04d", p.Month, p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// ParseSheetName parses a MM_YYYY sheet name.
func ParseSheetName(name string) (Period, error) {
	mm, yyyy, ok := strings.Cut(name, "_")
	if !ok || len(mm) != 2 || len(yyyy) != 4 {
		return Period{}, fmt.Errorf("sheet name %q: want MM_YYYY", name)
	}
	month, err := strconv.Atoi(mm)
	if err != nil {
		return Period{}, fmt.Errorf("sheet name %q: %w", name, err)
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil {
		return Period{}, fmt.Errorf("sheet name %q: %w", name, err)
	}
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, fmt.Errorf("sheet name %q: %w", name, err)
	}
	return p, nil
}

// IsTransfer reports whether the record moves money between accounts.
func (r TransactionRecord) IsTransfer() bool {
	_, ok := r.Transfer.(Move)
	return ok
}

// Sides returns the current and savings account a record touches. A Move
// leaves the current account on an outflow and returns to it on an inflow;
// a Direct row has no savings side.
func (r TransactionRecord) Sides() (current, savings string) {
	switch t := r.Transfer.(type) {
	case Direct:
		return t.Account, ""
	case Move:
		if r.Direction == Inflow {
			return t.To, t.From
		}
		return t.From, t.To
	}
	return "", ""
}

// SignedAmount returns the amount signed by direction.
func (r TransactionRecord) SignedAmount() decimal.Decimal {
	if r.Direction == Inflow {
		return r.Amount
	}
	return r.Amount.Neg()
}

func (r TransactionRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !AmountFitsCell(r.Amount) {
		return ErrAmountPrecision
	}
	if !r.Category.Valid() {
		return ErrUnknownCategory
	}
	if !r.Direction.Valid() {
		return ErrInvalidDirection
	}
	if r.Transfer == nil {
		return ErrNoTransfer
	}
	return nil
}
