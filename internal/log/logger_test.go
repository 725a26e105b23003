package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{
		Level:     level,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo).WithComponent(ComponentXLSX)
	logger.Info("saved", FieldFile, "Compta_2025.xlsx")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=xlsx") {
		t.Fatalf("expected a single xlsx component attribute, got %q", out)
	}
	if logger.Component() != ComponentXLSX {
		t.Fatalf("unexpected component %q", logger.Component())
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)
	ctx := IntoContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected the stored logger")
	}
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelInfo))
	ctx := context.Background()

	fields := NewFields().
		WithPeriod(2025, 5, "05_2025").
		WithTransaction("Loyer", "600.00", "rent", "outflow", "Principal")
	sl.LogTransactionAppended(ctx, fields, "05_2025!A7", 7)
	sl.LogError(ctx, "append failed", errors.New("locked"), ComponentLedger, OpAppend, NewFields())

	out := buf.String()
	for _, want := range []string{"sheet=05_2025", "label=Loyer", "row=7", "operation=append", "error=locked"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}

func TestLogFieldsBuilders(t *testing.T) {
	f := NewFields().
		WithErrorType(ErrorTypeLock).
		WithAccount("Livret", "savings")
	if f[FieldErrorType] != ErrorTypeLock || f[FieldAccount] != "Livret" || f[FieldKind] != "savings" {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := NewFields().WithAccount("Principal", "")[FieldKind]; ok {
		t.Fatalf("empty kind must be omitted")
	}
}
