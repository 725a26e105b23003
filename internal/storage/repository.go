package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"compta/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Mirror queue statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteRepository keeps a journal of appended rows and the queue of months
// waiting to be mirrored. The year workbooks stay authoritative; nothing
// here is read back into balances.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// JournalEntry is one appended row as recorded in the journal.
type JournalEntry struct {
	ID        string
	Record    core.TransactionRecord
	SheetRef  string
	CreatedAt time.Time
}

// MirrorItem is a month waiting to be pushed to the mirror.
type MirrorItem struct {
	ID        int64
	Period    core.Period
	Status    string
	Attempts  int64
	LastError string
}

// QueueStats counts mirror queue items per status.
type QueueStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// RecordAppend journals a saved row and queues its month for mirroring.
// It returns the journal entry ID.
func (r *SQLiteRepository) RecordAppend(ctx context.Context, rec core.TransactionRecord, sheetRef string) (string, error) {
	id := uuid.NewString()
	p := rec.Date.Period()
	now := r.now().Unix()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_entries
			(id, entry_date, year, month, label, amount, category, direction, recurring, transfer, sheet_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Date.ISO(), p.Year, p.Month, rec.Label, rec.Amount.String(),
		string(rec.Category), string(rec.Direction), rec.Recurring, rec.Transfer.String(), sheetRef, now)
	if err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}

	if err := enqueueMirror(ctx, tx, p, now); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Row journaled",
		"entry_id", id,
		"period", p.String(),
		"sheet_ref", sheetRef)

	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// enqueueMirror adds a pending item for p unless one is already waiting.
func enqueueMirror(ctx context.Context, db execer, p core.Period, now int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO mirror_queue (year, month, status, next_attempt_at, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM mirror_queue WHERE year = ? AND month = ? AND status = ?
		)`,
		p.Year, p.Month, StatusPending, now, now, now,
		p.Year, p.Month, StatusPending)
	if err != nil {
		return fmt.Errorf("enqueue mirror %s: %w", p, err)
	}
	return nil
}

// EnqueueMirror queues a month for mirroring.
func (r *SQLiteRepository) EnqueueMirror(ctx context.Context, p core.Period) error {
	return enqueueMirror(ctx, r.db, p, r.now().Unix())
}

// JournalEntries returns the journaled rows of a month in insertion order.
func (r *SQLiteRepository) JournalEntries(ctx context.Context, p core.Period) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_date, label, amount, category, direction, recurring, transfer, sheet_ref, created_at
		FROM journal_entries
		WHERE year = ? AND month = ?
		ORDER BY created_at, rowid`, p.Year, p.Month)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var date, amount, category, direction, transfer string
		var created int64
		if err := rows.Scan(&e.ID, &date, &e.Record.Label, &amount, &category, &direction,
			&e.Record.Recurring, &transfer, &e.SheetRef, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.Record.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		if e.Record.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		if e.Record.Category, err = core.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		if e.Record.Direction, err = core.ParseDirection(direction); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		if e.Record.Transfer, err = core.ParseTransfer(transfer); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetJournalEntry returns one journal entry by ID.
func (r *SQLiteRepository) GetJournalEntry(ctx context.Context, id string) (*JournalEntry, error) {
	var year, month int
	err := r.db.QueryRowContext(ctx, `SELECT year, month FROM journal_entries WHERE id = ?`, id).Scan(&year, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	entries, err := r.JournalEntries(ctx, core.Period{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
}

// DequeueMirrorBatch returns pending items that are due, oldest first.
func (r *SQLiteRepository) DequeueMirrorBatch(ctx context.Context, limit int64) ([]MirrorItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, year, month, status, attempts, last_error
		FROM mirror_queue
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY id
		LIMIT ?`, StatusPending, r.now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue mirror batch: %w", err)
	}
	defer rows.Close()

	var out []MirrorItem
	for rows.Next() {
		var it MirrorItem
		if err := rows.Scan(&it.ID, &it.Period.Year, &it.Period.Month, &it.Status, &it.Attempts, &it.LastError); err != nil {
			return nil, fmt.Errorf("scan mirror item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) setStatus(ctx context.Context, id int64, status string, extra string, args ...any) error {
	q := `UPDATE mirror_queue SET status = ?, updated_at = ?` + extra + ` WHERE id = ?`
	all := append([]any{status, r.now().Unix()}, args...)
	all = append(all, id)
	if _, err := r.db.ExecContext(ctx, q, all...); err != nil {
		return fmt.Errorf("set mirror item %d %s: %w", id, status, err)
	}
	return nil
}

// MarkMirrorProcessing claims an item.
func (r *SQLiteRepository) MarkMirrorProcessing(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusProcessing, "")
}

// MarkMirrorComplete records a successful push.
func (r *SQLiteRepository) MarkMirrorComplete(ctx context.Context, id int64, ref string) error {
	return r.setStatus(ctx, id, StatusCompleted, ", mirror_ref = ?, last_error = ''", ref)
}

// MarkMirrorFailed gives up on an item.
func (r *SQLiteRepository) MarkMirrorFailed(ctx context.Context, id int64, msg string) error {
	return r.setStatus(ctx, id, StatusFailed, ", attempts = attempts + 1, last_error = ?", msg)
}

// IncrementMirrorAttempt puts an item back in the queue with a backoff of
// 30s times the square of its attempt count.
func (r *SQLiteRepository) IncrementMirrorAttempt(ctx context.Context, id int64, attempts int64, msg string) error {
	next := attempts + 1
	delay := time.Duration(next*next) * 30 * time.Second
	return r.setStatus(ctx, id, StatusPending,
		", attempts = ?, last_error = ?, next_attempt_at = ?",
		next, msg, r.now().Add(delay).Unix())
}

// ResetStaleProcessing returns items left in processing by a crashed worker to pending.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mirror_queue SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, r.now().Unix(), StatusProcessing)
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	return nil
}

// RetryFailed resets every failed item for another round of attempts.
func (r *SQLiteRepository) RetryFailed(ctx context.Context) error {
	now := r.now().Unix()
	_, err := r.db.ExecContext(ctx,
		`UPDATE mirror_queue SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = ?`,
		StatusPending, now, now, StatusFailed)
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	return nil
}

// CleanupCompleted deletes completed items last updated before cutoff.
func (r *SQLiteRepository) CleanupCompleted(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mirror_queue WHERE status = ? AND updated_at < ?`,
		StatusCompleted, cutoff.Unix())
	if err != nil {
		return fmt.Errorf("cleanup completed: %w", err)
	}
	return nil
}

// Stats counts queue items per status.
func (r *SQLiteRepository) Stats(ctx context.Context) (QueueStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM mirror_queue GROUP BY status`)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var s QueueStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return QueueStats{}, fmt.Errorf("scan queue stats: %w", err)
		}
		switch status {
		case StatusPending:
			s.Pending = n
		case StatusProcessing:
			s.Processing = n
		case StatusCompleted:
			s.Completed = n
		case StatusFailed:
			s.Failed = n
		}
	}
	return s, rows.Err()
}
