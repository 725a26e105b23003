package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"compta/internal/core"
	"compta/internal/ledger"

	"github.com/shopspring/decimal"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    core.Period
		wantErr bool
	}{
		{in: "", want: core.Period{Year: 2025, Month: 7}},
		{in: "03_2024", want: core.Period{Year: 2024, Month: 3}},
		{in: "2024-11", want: core.Period{Year: 2024, Month: 11}},
		{in: "13_2024", wantErr: true},
		{in: "March", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parsePeriod(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parsePeriod(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("parsePeriod(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPromptDecider(t *testing.T) {
	lockErr := errors.New("workbook locked")
	var out bytes.Buffer
	decide := promptDecider(strings.NewReader("oui\nn\n"), &out)
	ctx := context.Background()

	if !decide(ctx, 1, lockErr) {
		t.Fatal("expected retry on 'oui'")
	}
	if decide(ctx, 2, lockErr) {
		t.Fatal("expected no retry on 'n'")
	}
	if decide(ctx, 3, lockErr) {
		t.Fatal("expected no retry at end of input")
	}
	if !strings.Contains(out.String(), "workbook locked") {
		t.Fatalf("prompt must show the lock error, got %q", out.String())
	}
}

func TestWaitDecider(t *testing.T) {
	decide := waitDecider(2, time.Millisecond)
	ctx := context.Background()
	if !decide(ctx, 1, nil) || !decide(ctx, 2, nil) {
		t.Fatal("expected two retries")
	}
	if decide(ctx, 3, nil) {
		t.Fatal("expected no third retry")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if waitDecider(5, time.Hour)(cancelled, 1, nil) {
		t.Fatal("cancelled context must stop retrying")
	}
}

func TestPrintBalancesJSON(t *testing.T) {
	b := ledger.Balances{
		Current: []ledger.AccountBalance{{Name: "Principal", Kind: core.Current, Balance: decimal.RequireFromString("1250.5")}},
		Savings: []ledger.AccountBalance{{Name: "Livret", Kind: core.Savings, Balance: decimal.NewFromInt(-20)}},
	}
	var out bytes.Buffer
	if err := printBalancesJSON(&out, b); err != nil {
		t.Fatalf("printBalancesJSON: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(got) != 2 || got["Principal"] != "1250.50" || got["Livret"] != "-20.00" {
		t.Fatalf("unexpected balances %v", got)
	}
}
