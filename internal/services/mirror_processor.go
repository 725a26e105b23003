package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"compta/internal/core"
	"compta/internal/log"
	"compta/internal/storage"
)

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// PollInterval is how often to check for pending months (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of months to push per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// MirrorQueue is the outbox of months waiting to be mirrored.
type MirrorQueue interface {
	DequeueMirrorBatch(ctx context.Context, limit int64) ([]storage.MirrorItem, error)
	MarkMirrorProcessing(ctx context.Context, id int64) error
	MarkMirrorComplete(ctx context.Context, id int64, ref string) error
	MarkMirrorFailed(ctx context.Context, id int64, msg string) error
	IncrementMirrorAttempt(ctx context.Context, id int64, attempts int64, msg string) error
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompleted(ctx context.Context, cutoff time.Time) error
	RetryFailed(ctx context.Context) error
	Stats(ctx context.Context) (storage.QueueStats, error)
}

// MonthSyncer mirrors one month.
type MonthSyncer interface {
	SyncMonth(ctx context.Context, p core.Period) (string, error)
}

// MirrorProcessor drains the mirror queue on a poll loop.
type MirrorProcessor struct {
	queue  MirrorQueue
	syncer MonthSyncer
	config MirrorProcessorConfig
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(queue MirrorQueue, syncer MonthSyncer, config MirrorProcessorConfig, logger *log.Logger) *MirrorProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorProcessor{
		queue:  queue,
		syncer: syncer,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left processing by a crashed worker go back to pending
	if err := p.queue.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", log.FieldError, err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Mirror processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// processBatch pushes one batch of pending months.
func (p *MirrorProcessor) processBatch(ctx context.Context) {
	items, err := p.queue.DequeueMirrorBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue mirror batch", log.FieldError, err)
		return
	}
	if len(items) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "Processing mirror batch", "count", len(items))

	for _, item := range items {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.queue.MarkMirrorProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, log.FieldError, err)
			continue
		}

		ref, err := p.syncer.SyncMonth(ctx, item.Period)
		if err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		p.handleSuccess(ctx, item, ref)
	}
}

func (p *MirrorProcessor) handleSuccess(ctx context.Context, item storage.MirrorItem, ref string) {
	if err := p.queue.MarkMirrorComplete(ctx, item.ID, ref); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark mirror complete",
			"id", item.ID, log.FieldError, err)
	}
}

// handleFailure schedules a retry, or gives up after MaxRetries attempts.
func (p *MirrorProcessor) handleFailure(ctx context.Context, item storage.MirrorItem, processErr error) {
	p.logger.WarnContext(ctx, "Mirror push failed",
		"id", item.ID,
		log.FieldPeriod, item.Period.String(),
		log.FieldAttempt, item.Attempts+1,
		log.FieldError, processErr)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.queue.MarkMirrorFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark mirror as failed",
				"id", item.ID, log.FieldError, err)
		}
		p.logger.ErrorContext(ctx, "Mirror item failed permanently after max retries",
			"id", item.ID,
			log.FieldPeriod, item.Period.String(),
			"attempts", item.Attempts+1)
		return
	}

	if err := p.queue.IncrementMirrorAttempt(ctx, item.ID, item.Attempts, processErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to increment mirror attempt",
			"id", item.ID, log.FieldError, err)
	}
}

func (p *MirrorProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	if err := p.queue.CleanupCompleted(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to cleanup completed mirror items", log.FieldError, err)
	}
}

func (p *MirrorProcessor) Stats(ctx context.Context) (storage.QueueStats, error) {
	return p.queue.Stats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *MirrorProcessor) RetryFailed(ctx context.Context) error {
	return p.queue.RetryFailed(ctx)
}
