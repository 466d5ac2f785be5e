package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/repository"
)

const taskColumns = `id, user_id, title, description, completed, due_date, created_at, updated_at`

var taskOrderings = map[string]string{
	"":                     "created_at DESC, id",
	domain.TaskSortCreated: "created_at DESC, id",
	domain.TaskSortTitle:   "LOWER(title) ASC, created_at DESC, id",
	domain.TaskSortDueDate: "due_date ASC NULLS LAST, created_at DESC, id",
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrTaskNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, id, userID)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	order, ok := taskOrderings[filter.Sort]
	if !ok {
		return nil, domain.Invalid("unsupported sort " + filter.Sort)
	}

	var completed *bool
	switch filter.Status {
	case "", domain.TaskStatusAll:
	case domain.TaskStatusCompleted:
		v := true
		completed = &v
	case domain.TaskStatusPending:
		v := false
		completed = &v
	default:
		return nil, domain.Invalid("unsupported status " + filter.Status)
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM tasks
	WHERE user_id = $1
	  AND ($2::boolean IS NULL OR completed = $2)
	ORDER BY %s
	LIMIT $3 OFFSET $4
	`, taskColumns, order)

	rows, err := r.pool.Query(ctx, query, filter.UserID, completed, clampLimit(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.UserID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, user_id, title, description, completed, due_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), COALESCE($8, $7, NOW()))
	RETURNING created_at, updated_at
	`

	createdAt, updatedAt := task.CreatedAt, task.UpdatedAt
	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		nullTime(task.DueDate),
		nullTime(&createdAt),
		nullTime(&updatedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.WrapError(domain.ErrCodeConflict, "task already exists", err)
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $3,
		description = $4,
		completed = $5,
		due_date = $6,
		updated_at = COALESCE($7, NOW())
	WHERE id = $1 AND user_id = $2
	RETURNING updated_at
	`

	updatedAt := task.UpdatedAt
	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		nullTime(task.DueDate),
		nullTime(&updatedAt),
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *taskRepository) ReplayUpdate(ctx context.Context, task *domain.Task) error {
	if task == nil || task.UpdatedAt.IsZero() {
		return domain.ErrInvalidPayload
	}
	if _, err := uuid.Parse(task.ID); err != nil {
		return domain.ErrTaskNotFound
	}

	const query = `
	UPDATE tasks
	SET title = $3,
		description = $4,
		completed = $5,
		due_date = $6,
		updated_at = $7
	WHERE id = $1 AND user_id = $2 AND updated_at <= $7
	`

	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		nullTime(task.DueDate),
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replay task update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2)`,
		task.ID, task.UserID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if exists {
		return domain.ErrStaleWrite
	}
	return domain.ErrTaskNotFound
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Summary(ctx context.Context, userID string) (*domain.TaskSummary, error) {
	const query = `
	SELECT COUNT(*),
		COUNT(*) FILTER (WHERE completed),
		COUNT(*) FILTER (WHERE NOT completed AND due_date IS NOT NULL AND due_date < NOW())
	FROM tasks
	WHERE user_id = $1
	`

	var summary domain.TaskSummary
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&summary.Total, &summary.Completed, &summary.Overdue); err != nil {
		return nil, fmt.Errorf("summarize tasks: %w", err)
	}
	summary.Pending = summary.Total - summary.Completed
	return &summary, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var due *time.Time

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&due,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.DueDate = due
	return &task, nil
}
