package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{",5", "0.5", true},
		{"12.", "12", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,2.3", "", false},
		{".", "", false},
		{"", "", false},
		{"123456789012.34", "123456789012.34", true},
		{"12345678901234567.89", "", false},
		{"0.1234567890123456789", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestAmountFitsCell(t *testing.T) {
	if _, err := ParseAmount("12345678901234567.89"); !errors.Is(err, ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision, got %v", err)
	}
	for _, in := range []string{"0.1", "19.99", "1234567.89", "0"} {
		if !AmountFitsCell(decimal.RequireFromString(in)) {
			t.Fatalf("%s must fit a cell", in)
		}
	}
	rec := TransactionRecord{
		Date:      NewDate(2025, 1, 1),
		Label:     "ok",
		Amount:    decimal.RequireFromString("12345678901234567.89"),
		Category:  Groceries,
		Direction: Outflow,
		Transfer:  Direct{Account: "C"},
	}
	if err := rec.Validate(); !errors.Is(err, ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision from Validate, got %v", err)
	}
}
