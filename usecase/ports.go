package usecase

import (
	"context"

	"github.com/fastygo/todo-backend/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the write-behind buffer so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
}

// EventPublisher fans task lifecycle events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TaskEvent) error
}
