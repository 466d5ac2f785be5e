package repository

import (
	"context"

	"github.com/fastygo/todo-backend/domain"
)

type TaskFilter struct {
	UserID string
	Status string
	Sort   string
	Limit  int
	Offset int
}

// TaskRepository persists tasks. Every method is scoped to the owning user.
type TaskRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	// ReplayUpdate applies a deferred write stamped with task.UpdatedAt. It fails
	// with domain.ErrStaleWrite when the stored row is newer.
	ReplayUpdate(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, userID, id string) error
	Summary(ctx context.Context, userID string) (*domain.TaskSummary, error)
}
