package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Rent          Category = "rent"
	Groceries     Category = "groceries"
	Leisure       Category = "leisure"
	Transport     Category = "transport"
	Health        Category = "health"
	Subscriptions Category = "subscriptions"
	Restaurants   Category = "restaurants"
	Gifts         Category = "gifts"
	SavingsCat    Category = "savings"
	Salary        Category = "salary"
	Reimbursement Category = "reimbursement"
	Other         Category = "other"
)

// Category is one of the fixed bookkeeping categories.
type Category string

var (
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidDirection = errors.New("invalid direction")
)

// Categories lists every category in display order.
var Categories = []Category{
	Rent, Groceries, Leisure, Transport, Health, Subscriptions,
	Restaurants, Gifts, SavingsCat, Salary, Reimbursement, Other,
}

var categoryLabels = map[Category]string{
	Rent:          "Loyer",
	Groceries:     "Courses",
	Leisure:       "Loisirs",
	Transport:     "Transport",
	Health:        "Santé",
	Subscriptions: "Abonnements",
	Restaurants:   "Restaurants",
	Gifts:         "Cadeaux",
	SavingsCat:    "Épargne",
	Salary:        "Salaire",
	Reimbursement: "Remboursement",
	Other:         "Autre",
}

// Label returns the name written in the workbook.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// IsSavings reports whether rows of this category are current/savings transfers.
func (c Category) IsSavings() bool {
	return c == SavingsCat
}

// ParseCategory accepts either the category key or its workbook label, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	// "Epargne" without the accent is common in hand-edited workbooks.
	if strings.EqualFold(s, "epargne") || strings.EqualFold(s, "saving") {
		return SavingsCat, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}
