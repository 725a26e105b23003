package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"compta/internal/cache"
	"compta/internal/core"
	"compta/internal/log"
	"compta/internal/sheets"
)

var ErrMirrorDisabled = errors.New("mirror not configured")

// MirrorService pushes whole month sheets to the remote mirror. A month
// whose rows have not changed since the last push is skipped.
type MirrorService struct {
	reader sheets.MonthReader
	mirror sheets.MonthMirror
	pushed *cache.LRUCache[core.Period, string]
	logger *log.Logger
}

func NewMirrorService(reader sheets.MonthReader, mirror sheets.MonthMirror, logger *log.Logger) *MirrorService {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorService{
		reader: reader,
		mirror: mirror,
		pushed: cache.NewLRUCache[core.Period, string](36, 24*time.Hour),
		logger: logger.WithComponent(log.ComponentMirror),
	}
}

// PushedCache exposes the fingerprint cache so a cache.Manager can sweep it.
func (m *MirrorService) PushedCache() *cache.LRUCache[core.Period, string] {
	return m.pushed
}

// SyncMonth mirrors p and returns the remote range written, or "" when the
// month was already up to date.
func (m *MirrorService) SyncMonth(ctx context.Context, p core.Period) (string, error) {
	if m.mirror == nil {
		return "", ErrMirrorDisabled
	}
	rows, err := m.reader.ReadMonth(ctx, p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p.SheetName(), err)
	}

	fp := fingerprint(rows)
	if last, ok := m.pushed.Get(p); ok && last == fp {
		m.logger.DebugContext(ctx, "Month unchanged since last push",
			log.FieldSheet, p.SheetName())
		return "", nil
	}

	ref, err := m.mirror.PushMonth(ctx, p, rows)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", p.SheetName(), err)
	}
	m.pushed.Set(p, fp)

	m.logger.InfoContext(ctx, "Mirrored month",
		log.FieldOperation, log.OpSync,
		log.FieldSheet, p.SheetName(),
		log.FieldRow, len(rows),
		log.FieldMirrorRef, ref)
	return ref, nil
}

// fingerprint hashes the mirrored columns of rows in sheet order.
func fingerprint(rows []core.TransactionRecord) string {
	h := sha256.New()
	for _, r := range rows {
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%t\x1f%s\x1e",
			r.Date.ISO(), r.Label, r.Amount.String(), r.Category, r.Direction, r.Recurring, r.Transfer.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
