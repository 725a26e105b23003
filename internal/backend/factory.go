package backend

import (
	"context"
	"errors"
	"fmt"

	"compta/internal/amqp"
	"compta/internal/log"
	"compta/internal/sheets"
	"compta/internal/sheets/memory"
	"compta/internal/sheets/xlsx"
	"compta/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store sheets.Ledger
	switch config.Type {
	case XLSXBackend:
		xs := xlsx.New(config.DataDirectory, xlsx.WithLogger(f.logger))
		store = xs
		f.logger.InfoContext(ctx, "Initialized xlsx backend", "data_directory", xs.Dir())
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	res := &BackendResult{Store: store}

	if config.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Journal = repo
		f.logger.InfoContext(ctx, "Initialized SQLite journal", "db_path", config.SQLiteDBPath)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			res.Publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if res.Publisher != nil {
			errs = append(errs, res.Publisher.Close())
		}
		if res.Journal != nil {
			errs = append(errs, res.Journal.Close())
		}
		return errors.Join(errs...)
	}
	return res, nil
}
