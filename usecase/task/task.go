package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/pkg/logger"
	"github.com/fastygo/todo-backend/repository"
	"github.com/fastygo/todo-backend/usecase"
)

// Patch carries a partial task update. Nil fields are left unchanged;
// DueDateSet with a nil DueDate clears the due date.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
	DueDate     *time.Time
	DueDateSet  bool
}

type UseCase struct {
	tasks  repository.TaskRepository
	buffer usecase.OperationBuffer
	events usecase.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, buffer usecase.OperationBuffer, events usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		buffer: buffer,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !domain.ValidTaskStatus(filter.Status) {
		return nil, domain.Invalid("status must be one of all, pending, completed")
	}
	if !domain.ValidTaskSort(filter.Sort) {
		return nil, domain.Invalid("sort must be one of created, title, due_date")
	}
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if id == "" {
		return nil, domain.ErrTaskNotFound
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

func (uc *UseCase) CreateTask(ctx context.Context, userID string, task *domain.Task) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	task.Normalize()
	if err := task.Validate(); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	task.ID = uuid.NewString()
	task.UserID = userID
	task.CreatedAt = now
	task.UpdatedAt = now

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationCreate, task) {
			uc.publish(ctx, domain.EventTaskCreated, task)
			return task, nil
		}
		return nil, err
	}
	uc.publish(ctx, domain.EventTaskCreated, created)
	return created, nil
}

func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch Patch) (*domain.Task, error) {
	task, err := uc.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wasCompleted := task.Completed

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	if patch.DueDateSet {
		task.DueDate = patch.DueDate
	}
	task.Normalize()
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := uc.save(ctx, task); err != nil {
		return nil, err
	}

	eventType := domain.EventTaskUpdated
	if task.Completed && !wasCompleted {
		eventType = domain.EventTaskCompleted
	}
	uc.publish(ctx, eventType, task)
	return task, nil
}

// ToggleCompletion flips the completed flag of the caller's task.
func (uc *UseCase) ToggleCompletion(ctx context.Context, userID, id string) (*domain.Task, error) {
	task, err := uc.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	task.Completed = !task.Completed

	if err := uc.save(ctx, task); err != nil {
		return nil, err
	}

	eventType := domain.EventTaskUpdated
	if task.Completed {
		eventType = domain.EventTaskCompleted
	}
	uc.publish(ctx, eventType, task)
	return task, nil
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	task, err := uc.GetTask(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, userID, id); err != nil {
		if !uc.shouldBuffer(ctx, err, usecase.OperationDelete, task) {
			return err
		}
	}
	uc.publish(ctx, domain.EventTaskDeleted, task)
	return nil
}

func (uc *UseCase) Summary(ctx context.Context, userID string) (*domain.TaskSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	summary, err := uc.tasks.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.Message = summaryMessage(summary)
	return summary, nil
}

func summaryMessage(s *domain.TaskSummary) string {
	switch {
	case s.Total == 0:
		return "No tasks yet"
	case s.Pending == 0:
		return "All tasks completed"
	case s.Pending == 1:
		return "You have 1 pending task"
	default:
		return fmt.Sprintf("You have %d pending tasks", s.Pending)
	}
}

// save stamps task with the write time and writes it through. On an
// infrastructure failure the stamped write is buffered; replay compares the
// stamp so it cannot clobber a newer row.
func (uc *UseCase) save(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = uc.now().UTC()
	if err := uc.tasks.Update(ctx, task); err != nil {
		if uc.shouldBuffer(ctx, err, usecase.OperationUpdate, task) {
			return nil
		}
		return err
	}
	return nil
}

// shouldBuffer hands infrastructure failures to the write-behind buffer.
// Domain errors are returned to the caller unchanged.
func (uc *UseCase) shouldBuffer(ctx context.Context, cause error, operation string, task *domain.Task) bool {
	if uc.buffer == nil || domain.CodeOf(cause) != domain.ErrCodeInternal {
		return false
	}
	log := logger.WithRequestID(ctx, uc.logger)
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		log.Error("failed to buffer task operation",
			zap.String("operation", operation),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return false
	}
	log.Warn("task operation buffered",
		zap.String("operation", operation),
		zap.String("task_id", task.ID),
		zap.NamedError("cause", cause))
	return true
}

func (uc *UseCase) publish(ctx context.Context, eventType string, task *domain.Task) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, domain.NewTaskEvent(eventType, task, uc.now())); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("task event not published",
			zap.String("event", eventType),
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}
