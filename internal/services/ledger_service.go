package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"compta/internal/amqp"
	"compta/internal/cache"
	"compta/internal/chart"
	"compta/internal/core"
	"compta/internal/ledger"
	"compta/internal/log"
	"compta/internal/settings"
	"compta/internal/sheets"
)

const (
	defaultStatsCacheSize = 24
	defaultStatsCacheTTL  = 5 * time.Minute
)

var ErrInvalidAccountKind = errors.New("invalid account kind")

// Journal records appended rows outside the workbook.
type Journal interface {
	RecordAppend(ctx context.Context, rec core.TransactionRecord, sheetRef string) (string, error)
}

// Publisher announces that a month sheet changed.
type Publisher interface {
	PublishMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error
}

// SaveFunc persists the settings document.
type SaveFunc func(settings.Document) error

// MonthStats is everything computed from one month sheet.
type MonthStats struct {
	Period    core.Period
	Rows      []core.TransactionRecord
	Derived   sheets.Derived
	KPIs      ledger.KPIs
	Recurring []ledger.LabelTotal
	Savings   []ledger.SavingsMovement
}

// LedgerService orchestrates appends, statistics and account management.
// The workbook is written first; journal and notification failures are
// logged and never fail an append.
type LedgerService struct {
	store sheets.Ledger

	mu   sync.Mutex
	doc  settings.Document
	reg  *core.AccountRegistry
	save SaveFunc

	journal   Journal
	publisher Publisher
	stats     *cache.LRUCache[core.Period, MonthStats]

	logger     *log.Logger
	structured *log.StructuredLogger
}

type Option func(*LedgerService)

func WithJournal(j Journal) Option {
	return func(s *LedgerService) { s.journal = j }
}

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

// WithStatsCache replaces the default month statistics cache.
func WithStatsCache(c *cache.LRUCache[core.Period, MonthStats]) Option {
	return func(s *LedgerService) { s.stats = c }
}

// NewLedgerService builds the service from a loaded settings document.
// save may be nil, in which case account changes only live in memory.
func NewLedgerService(store sheets.Ledger, doc settings.Document, save SaveFunc, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		doc:    doc,
		reg:    doc.Registry(),
		save:   save,
		stats:  cache.NewLRUCache[core.Period, MonthStats](defaultStatsCacheSize, defaultStatsCacheTTL),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.structured = log.NewStructuredLogger(s.logger)
	return s
}

// StatsCache exposes the month statistics cache so a cache.Manager can sweep it.
func (s *LedgerService) StatsCache() *cache.LRUCache[core.Period, MonthStats] {
	return s.stats
}

// SubmitTransaction validates the draft, appends it to its month sheet and
// returns the saved row with the recomputed derived values.
func (s *LedgerService) SubmitTransaction(ctx context.Context, d core.Draft, decide sheets.RetryDecider) (sheets.AppendResult, error) {
	s.mu.Lock()
	rec, err := d.Resolve(s.reg)
	s.mu.Unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "Transaction rejected",
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, errorType(err),
			log.FieldError, err)
		return sheets.AppendResult{}, err
	}

	res, err := s.store.Append(ctx, rec, s.accounts(), decide)
	if err != nil {
		s.structured.LogError(ctx, "Failed to append transaction", err, log.ComponentLedger, log.OpAppend,
			log.NewFields().
				WithErrorType(errorType(err)).
				WithTransaction(rec.Label, core.FormatAmount(rec.Amount), string(rec.Category), string(rec.Direction), rec.Transfer.String()))
		return sheets.AppendResult{}, err
	}
	s.stats.Delete(res.Period)

	fields := log.NewFields().
		WithPeriod(res.Period.Year, res.Period.Month, res.Period.SheetName()).
		WithTransaction(rec.Label, core.FormatAmount(rec.Amount), string(rec.Category), string(rec.Direction), rec.Transfer.String())
	s.structured.LogTransactionAppended(ctx, fields, res.Ref, res.Row)
	if res.DerivedErr != nil {
		s.logger.WarnContext(ctx, "Derived tables partially written",
			log.FieldSheet, res.Period.SheetName(),
			log.FieldError, res.DerivedErr)
	}

	s.rememberAccounts(ctx, rec)

	entryID := s.journalAppend(ctx, rec, res.Ref)
	if err := s.publish(ctx, res.Period, entryID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish month changed message",
			log.FieldSheet, res.Period.SheetName(),
			log.FieldError, err)
		// The row is saved; the mirror catches up from the journal queue.
	}
	return res, nil
}

func (s *LedgerService) journalAppend(ctx context.Context, rec core.TransactionRecord, ref string) string {
	if s.journal == nil {
		return ""
	}
	id, err := s.journal.RecordAppend(ctx, rec, ref)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to journal transaction",
			log.FieldFile, ref,
			log.FieldError, err)
		return ""
	}
	return id
}

func (s *LedgerService) publish(ctx context.Context, p core.Period, entryID string) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping month changed message")
		return nil
	}
	return s.publisher.PublishMonthChanged(ctx, amqp.NewMonthChangedMessage(p, entryID))
}

// rememberAccounts stores the accounts used by rec as the next defaults.
func (s *LedgerService) rememberAccounts(ctx context.Context, rec core.TransactionRecord) {
	current, savings := rec.Sides()

	s.mu.Lock()
	changed := false
	if current != "" && current != s.doc.LastCurrent {
		s.doc.LastCurrent = current
		changed = true
	}
	if savings != "" && savings != s.doc.LastSavings {
		s.doc.LastSavings = savings
		changed = true
	}
	var err error
	if changed {
		err = s.persistLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithComponent(log.ComponentSettings).WarnContext(ctx, "Failed to remember last accounts",
			log.FieldOperation, log.OpSave,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err)
	}
}

// errorType maps err to one of the log ErrorType categories.
func errorType(err error) string {
	var storageErr *sheets.StorageError
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case errors.Is(err, sheets.ErrLockConflict), errors.Is(err, sheets.ErrAppendCancelled):
		return log.ErrorTypeLock
	case errors.As(err, &storageErr):
		return log.ErrorTypeStorage
	}
	return log.ErrorTypeInternal
}

// Month returns the rows of p and everything computed from them.
func (s *LedgerService) Month(ctx context.Context, p core.Period) (MonthStats, error) {
	if err := p.Validate(); err != nil {
		return MonthStats{}, err
	}
	if st, ok := s.stats.Get(p); ok {
		return st, nil
	}
	rows, err := s.store.ReadMonth(ctx, p)
	if err != nil {
		return MonthStats{}, fmt.Errorf("read %s: %w", p.SheetName(), err)
	}
	st := s.monthStats(p, rows)
	s.stats.Set(p, st)
	s.logger.DebugContext(ctx, "Month statistics computed",
		log.FieldOperation, log.OpRead,
		log.FieldSheet, p.SheetName(),
		log.FieldRow, len(rows))
	return st, nil
}

// MonthInScope is Month restricted to the rows visible from scope. Savings
// transfers follow the registry's savings links.
func (s *LedgerService) MonthInScope(ctx context.Context, p core.Period, scope ledger.Scope) (MonthStats, error) {
	st, err := s.Month(ctx, p)
	if err != nil || scope.Kind == ledger.ScopeAll {
		return st, err
	}
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	return s.monthStats(p, ledger.FilterByScope(st.Rows, scope, reg)), nil
}

func (s *LedgerService) monthStats(p core.Period, rows []core.TransactionRecord) MonthStats {
	return MonthStats{
		Period:    p,
		Rows:      rows,
		Derived:   sheets.Derive(rows, s.accounts()),
		KPIs:      ledger.ComputeKPIs(rows),
		Recurring: ledger.RecurringByLabel(rows),
		Savings:   ledger.SavingsByAccount(rows),
	}
}

func (s *LedgerService) Balances(ctx context.Context, p core.Period) (ledger.Balances, error) {
	st, err := s.Month(ctx, p)
	if err != nil {
		return ledger.Balances{}, err
	}
	return st.Derived.Balances, nil
}

// CategoryBreakdown returns the chart series of p.
func (s *LedgerService) CategoryBreakdown(ctx context.Context, p core.Period) (chart.Data, error) {
	st, err := s.Month(ctx, p)
	if err != nil {
		return chart.Data{}, err
	}
	return st.Derived.Chart, nil
}

func (s *LedgerService) KPIs(ctx context.Context, p core.Period, scope ledger.Scope) (ledger.KPIs, error) {
	st, err := s.MonthInScope(ctx, p, scope)
	if err != nil {
		return ledger.KPIs{}, err
	}
	return st.KPIs, nil
}

// MonthlySeries returns twelve points for year; months without a sheet are zero.
func (s *LedgerService) MonthlySeries(ctx context.Context, year int) ([]ledger.MonthPoint, error) {
	byMonth, err := s.store.ReadYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("read year %d: %w", year, err)
	}
	return ledger.MonthlySeries(byMonth), nil
}

// Archive lists every month sheet found in the storage directory.
func (s *LedgerService) Archive(ctx context.Context) ([]core.Period, error) {
	return s.store.ListPeriods(ctx)
}

func (s *LedgerService) AddAccount(kind core.AccountKind, name string) (bool, error) {
	return s.mutateAccounts("Account added", kind, name, func(reg *core.AccountRegistry) bool { return reg.Add(kind, name) })
}

func (s *LedgerService) RemoveAccount(kind core.AccountKind, name string) (bool, error) {
	return s.mutateAccounts("Account removed", kind, name, func(reg *core.AccountRegistry) bool { return reg.Remove(kind, name) })
}

// LinkSavings records current as the account that funds savings.
func (s *LedgerService) LinkSavings(savings, current string) (bool, error) {
	return s.mutateAccounts("Savings account linked", core.Savings, savings, func(reg *core.AccountRegistry) bool { return reg.Link(savings, current) })
}

func (s *LedgerService) mutateAccounts(msg string, kind core.AccountKind, name string, fn func(*core.AccountRegistry) bool) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidAccountKind, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(s.reg) {
		return false, nil
	}
	// Balances list every registered account, so cached months are stale.
	s.stats.Purge()

	s.logger.WithComponent(log.ComponentAccounts).Info(msg,
		log.NewFields().WithAccount(name, string(kind)).ToSlice()...)

	if err := s.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

func (s *LedgerService) ListAccounts(kind core.AccountKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Accounts(kind)
}

func (s *LedgerService) Links() []core.SavingLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Links()
}

// SetStorageDir records the directory holding the year workbooks. It takes
// effect the next time the store is opened.
func (s *LedgerService) SetStorageDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.StorageDir = dir
	return s.persistLocked()
}

// Settings returns a snapshot of the settings document.
func (s *LedgerService) Settings() settings.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.WithRegistry(s.reg)
}

func (s *LedgerService) persistLocked() error {
	s.doc = s.doc.WithRegistry(s.reg)
	if s.save == nil {
		return nil
	}
	if err := s.save(s.doc); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// accounts snapshots the registry so a long append does not hold s.mu.
func (s *LedgerService) accounts() ledger.AccountLister {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.NewAccountRegistry(s.reg.Accounts(core.Current), s.reg.Accounts(core.Savings))
}
