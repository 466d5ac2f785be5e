package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/internal/infrastructure/buffer"
	"github.com/fastygo/todo-backend/repository"
	"github.com/fastygo/todo-backend/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained and pruned.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered task writes against Postgres.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	taskRepo repository.TaskRepository
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	taskRepo repository.TaskRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) (*BufferProcessor, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		taskRepo: taskRepo,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	if _, err := bp.cron.AddFunc("@every "+cfg.Interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule buffer drain: %w", err)
	}

	if _, err := bp.cron.AddFunc("@hourly", bp.prune); err != nil {
		return nil, fmt.Errorf("schedule buffer cleanup: %w", err)
	}

	return bp, nil
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch of buffered items in key order. Once a write for a
// task fails, the task's later writes wait for the next drain.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	blocked := make(map[string]struct{})
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := blocked[item.EntityID]; ok {
			continue
		}
		err := bp.processItem(ctx, item)
		switch {
		case err == nil:
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
			}
		case domain.CodeOf(err) != domain.ErrCodeInternal:
			// Replaying will keep failing the same way.
			bp.logger.Warn("dropping rejected buffer item",
				zap.String("item_id", item.ID),
				zap.String("operation", item.Operation),
				zap.Error(err))
			_ = bp.store.Remove(item)
		default:
			blocked[item.EntityID] = struct{}{}
			bp.retry(item, err)
		}
	}
	return nil
}

func (bp *BufferProcessor) retry(item buffer.Item, cause error) {
	bp.logger.Error("failed to process buffer item",
		zap.String("item_id", item.ID),
		zap.String("entity_id", item.EntityID),
		zap.Error(cause))

	item.Retries++
	if item.Retries >= bp.cfg.MaxRetries {
		bp.logger.Warn("dropping buffer item (max retries reached)", zap.String("item_id", item.ID))
		_ = bp.store.Remove(item)
		return
	}
	if err := bp.store.MarkRetry(item); err != nil {
		bp.logger.Error("failed to record buffer retry", zap.Error(err))
	}
}

func (bp *BufferProcessor) prune() {
	removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
	if err != nil {
		bp.logger.Error("buffer cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		bp.logger.Warn("expired buffer items dropped", zap.Int("count", removed))
	}
}

// BufferTask persists a task write for later replay.
func (bp *BufferProcessor) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if bp == nil || bp.store == nil {
		return errors.New("buffer processor not configured")
	}
	if task == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return bp.store.Enqueue(buffer.Item{
		Entity:    buffer.EntityTask,
		EntityID:  task.ID,
		UserID:    task.UserID,
		Operation: operation,
		Data:      payload,
		Priority:  priorityFor(operation),
	})
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

// priorityFor keeps a task's create ahead of its later update or delete.
func priorityFor(operation string) int {
	switch operation {
	case usecase.OperationCreate:
		return 1
	case usecase.OperationUpdate:
		return 2
	default:
		return 3
	}
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if item.Entity != buffer.EntityTask {
		return domain.Invalid("unsupported entity " + item.Entity)
	}

	var task domain.Task
	if err := json.Unmarshal(item.Data, &task); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffer item", err)
	}

	switch item.Operation {
	case usecase.OperationCreate:
		_, err := bp.taskRepo.Create(ctx, &task)
		return err
	case usecase.OperationUpdate:
		return bp.taskRepo.ReplayUpdate(ctx, &task)
	case usecase.OperationDelete:
		return bp.taskRepo.Delete(ctx, task.UserID, task.ID)
	default:
		return domain.Invalid("unsupported operation " + item.Operation)
	}
}

var _ usecase.OperationBuffer = (*BufferProcessor)(nil)
