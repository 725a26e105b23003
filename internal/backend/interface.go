package backend

import (
	"context"

	"compta/internal/amqp"
	"compta/internal/services"
	"compta/internal/sheets"
	"compta/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the ledger store and the optional side channels
// opened alongside it.
type BackendResult struct {
	Store sheets.Ledger
	// Journal is nil when SQLITE_DB_PATH is empty.
	Journal *storage.SQLiteRepository
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// ServiceOptions wires the opened side channels into a LedgerService.
func (r *BackendResult) ServiceOptions() []services.Option {
	var opts []services.Option
	if r.Journal != nil {
		opts = append(opts, services.WithJournal(r.Journal))
	}
	if r.Publisher != nil {
		opts = append(opts, services.WithPublisher(r.Publisher))
	}
	return opts
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Directory holding the Compta_YYYY.xlsx workbooks
	DataDirectory string

	// Optional journal and mirror queue
	SQLiteDBPath string

	// Optional month-changed notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	XLSXBackend   BackendType = "xlsx"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case XLSXBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
