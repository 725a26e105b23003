package worker

import (
	"context"
	"errors"
	"fmt"

	"compta/internal/amqp"
	"compta/internal/core"
	"compta/internal/log"
	"compta/internal/services"
)

// Enqueuer hands a month to the mirror queue for a later retry.
type Enqueuer interface {
	EnqueueMirror(ctx context.Context, p core.Period) error
}

// MirrorWorker mirrors the month named by each month-changed message.
type MirrorWorker struct {
	syncer services.MonthSyncer
	queue  Enqueuer
	logger *log.Logger
}

// NewMirrorWorker creates a worker. queue may be nil, in which case a failed
// push is returned to the broker for redelivery.
func NewMirrorWorker(syncer services.MonthSyncer, queue Enqueuer, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		syncer: syncer,
		queue:  queue,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMonthChanged processes a single month-changed message from AMQP
func (w *MirrorWorker) HandleMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error {
	p := msg.Period()
	w.logger.InfoContext(ctx, "Processing month changed message",
		"id", msg.ID,
		log.FieldSheet, p.SheetName(),
		log.FieldEntryID, msg.EntryID)

	ref, err := w.syncer.SyncMonth(ctx, p)
	switch {
	case err == nil:
		if ref != "" {
			w.logger.InfoContext(ctx, "Month mirrored",
				log.FieldSheet, p.SheetName(),
				log.FieldMirrorRef, ref)
		}
		return nil
	case errors.Is(err, services.ErrMirrorDisabled):
		w.logger.WarnContext(ctx, "No mirror configured, dropping message",
			log.FieldSheet, p.SheetName())
		return nil
	}

	if w.queue == nil {
		return fmt.Errorf("sync month %s: %w", p.SheetName(), err)
	}
	w.logger.WarnContext(ctx, "Mirror push failed, queued for retry",
		log.FieldSheet, p.SheetName(),
		log.FieldError, err)
	if qerr := w.queue.EnqueueMirror(ctx, p); qerr != nil {
		return fmt.Errorf("enqueue month %s: %w", p.SheetName(), errors.Join(err, qerr))
	}
	return nil
}
