package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingDate            = errors.New("date is required")
	ErrInvalidDate            = errors.New("invalid date")
	ErrMissingLabel           = errors.New("label is required")
	ErrMissingAmount          = errors.New("amount is required")
	ErrMissingCategory        = errors.New("category is required")
	ErrSavingsAccountRequired = errors.New("a savings account must be chosen for a savings transfer")
	ErrUnknownSavingsAccount  = errors.New("unknown savings account")
)

// ValidationError reports a rejected form field. No row is written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Draft holds raw form input for one transaction.
type Draft struct {
	Date           string
	Label          string
	Amount         string
	Category       string
	Direction      string
	Recurring      bool
	CurrentAccount string
	SavingsAccount string
}

var dateLayouts = []string{"02-01-2006", "2006-01-02", "02/01/2006"}

// placeholders are the prompt texts the form shows in empty fields.
var placeholders = map[string]struct{}{
	"":           {},
	"-":          {},
	"--":         {},
	"jj-mm-aaaa": {},
	"dd-mm-yyyy": {},
	"catégorie":  {},
	"categorie":  {},
	"category":   {},
	"montant":    {},
	"amount":     {},
	"libellé":    {},
	"label":      {},
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseDate accepts DD-MM-YYYY, YYYY-MM-DD and DD/MM/YYYY.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Resolve validates the draft against the registry and builds the record
// to append, including its resolved transfer.
func (d Draft) Resolve(reg *AccountRegistry) (TransactionRecord, error) {
	if isPlaceholder(d.Date) {
		return TransactionRecord{}, invalid("date", ErrMissingDate)
	}
	date, err := ParseDate(d.Date)
	if err != nil {
		return TransactionRecord{}, invalid("date", err)
	}
	if isPlaceholder(d.Label) {
		return TransactionRecord{}, invalid("label", ErrMissingLabel)
	}
	if isPlaceholder(d.Amount) {
		return TransactionRecord{}, invalid("amount", ErrMissingAmount)
	}
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return TransactionRecord{}, invalid("amount", err)
	}
	if isPlaceholder(d.Category) {
		return TransactionRecord{}, invalid("category", ErrMissingCategory)
	}
	cat, err := ParseCategory(d.Category)
	if err != nil {
		return TransactionRecord{}, invalid("category", err)
	}
	dir := Outflow
	if strings.TrimSpace(d.Direction) != "" {
		if dir, err = ParseDirection(d.Direction); err != nil {
			return TransactionRecord{}, invalid("direction", err)
		}
	}

	savings := strings.TrimSpace(d.SavingsAccount)
	if cat.IsSavings() && len(reg.Accounts(Savings)) > 0 {
		if savings == "" {
			return TransactionRecord{}, invalid("savings_account", ErrSavingsAccountRequired)
		}
		if !reg.Contains(Savings, savings) {
			return TransactionRecord{}, invalid("savings_account", fmt.Errorf("%w: %q", ErrUnknownSavingsAccount, savings))
		}
	} else {
		savings = ""
	}

	current := strings.TrimSpace(d.CurrentAccount)
	if current == "" && savings != "" {
		current, _ = reg.LinkedCurrent(savings)
	}
	if current == "" {
		current = reg.CurrentOrFallback()
	}

	rec := TransactionRecord{
		Date:      date,
		Label:     strings.TrimSpace(d.Label),
		Amount:    amount,
		Category:  cat,
		Direction: dir,
		Recurring: d.Recurring,
		Transfer:  ResolveTransfer(cat, dir, current, savings),
	}
	return rec, nil
}
