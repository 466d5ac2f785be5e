package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/internal/infrastructure/buffer"
	"github.com/fastygo/todo-backend/repository"
	"github.com/fastygo/todo-backend/usecase"
)

// memTaskRepo keeps tasks in memory and records every applied write in order.
type memTaskRepo struct {
	tasks       map[string]domain.Task
	calls       []string
	err         error
	failReplays int
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]domain.Task)}
}

func (r *memTaskRepo) GetByID(_ context.Context, userID, id string) (*domain.Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (r *memTaskRepo) List(context.Context, repository.TaskFilter) ([]domain.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks[task.ID] = *task
	r.calls = append(r.calls, "create:"+task.ID)
	return task, nil
}

func (r *memTaskRepo) Update(_ context.Context, task *domain.Task) error {
	if r.err != nil {
		return r.err
	}
	r.tasks[task.ID] = *task
	r.calls = append(r.calls, "direct:"+task.Title)
	return nil
}

func (r *memTaskRepo) ReplayUpdate(_ context.Context, task *domain.Task) error {
	if r.err != nil {
		return r.err
	}
	if r.failReplays > 0 {
		r.failReplays--
		return errors.New("connection reset")
	}
	current, ok := r.tasks[task.ID]
	if !ok || current.UserID != task.UserID {
		return domain.ErrTaskNotFound
	}
	if current.UpdatedAt.After(task.UpdatedAt) {
		return domain.ErrStaleWrite
	}
	r.tasks[task.ID] = *task
	r.calls = append(r.calls, "update:"+task.Title)
	return nil
}

func (r *memTaskRepo) Delete(_ context.Context, _ string, id string) error {
	if r.err != nil {
		return r.err
	}
	delete(r.tasks, id)
	r.calls = append(r.calls, "delete:"+id)
	return nil
}

func (r *memTaskRepo) Summary(context.Context, string) (*domain.TaskSummary, error) {
	return &domain.TaskSummary{}, nil
}

type staticHealth bool

func (h staticHealth) IsOnline() bool { return bool(h) }

func newProcessor(t *testing.T, repo repository.TaskRepository, health ConnectionHealth) (*BufferProcessor, *buffer.Store) {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bp, err := NewBufferProcessor(store, health, repo, nil, ProcessorConfig{Interval: time.Hour, MaxRetries: 2})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return bp, store
}

// bufferUpdate enqueues an update stamped at, with a pause so enqueue times differ.
func bufferUpdate(t *testing.T, bp *BufferProcessor, id, title string, at time.Time) {
	t.Helper()
	task := &domain.Task{ID: id, UserID: "u1", Title: title, UpdatedAt: at}
	if err := bp.BufferTask(context.Background(), usecase.OperationUpdate, task); err != nil {
		t.Fatalf("buffer %s: %v", title, err)
	}
	time.Sleep(time.Millisecond)
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestDrainReplaysInOperationOrder(t *testing.T) {
	repo := newMemTaskRepo()
	bp, store := newProcessor(t, repo, staticHealth(true))
	ctx := context.Background()

	task := &domain.Task{ID: "t1", UserID: "u1", Title: "x"}
	_ = bp.BufferTask(ctx, usecase.OperationDelete, task)
	_ = bp.BufferTask(ctx, usecase.OperationUpdate, task)
	_ = bp.BufferTask(ctx, usecase.OperationCreate, task)

	if err := bp.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	assertCalls(t, repo.calls, "create:t1", "update:x", "delete:t1")
	if size, _ := store.Size(); size != 0 {
		t.Fatalf("buffer not emptied, size = %d", size)
	}
}

func TestDrainKeepsUpdateOrderAcrossRetries(t *testing.T) {
	repo := newMemTaskRepo()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.tasks["t1"] = domain.Task{ID: "t1", UserID: "u1", Title: "v0", UpdatedAt: base}
	repo.tasks["t2"] = domain.Task{ID: "t2", UserID: "u1", Title: "w0", UpdatedAt: base}
	repo.failReplays = 1

	bp, store := newProcessor(t, repo, staticHealth(true))
	ctx := context.Background()

	bufferUpdate(t, bp, "t1", "v1", base.Add(time.Minute))
	bufferUpdate(t, bp, "t1", "v2", base.Add(2*time.Minute))
	bufferUpdate(t, bp, "t2", "w1", base.Add(3*time.Minute))

	if err := bp.Drain(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	// v1 failed, so v2 must wait; t2 is independent.
	assertCalls(t, repo.calls, "update:w1")
	if size, _ := store.Size(); size != 2 {
		t.Fatalf("size after first drain = %d", size)
	}

	if err := bp.Drain(ctx); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	assertCalls(t, repo.calls, "update:w1", "update:v1", "update:v2")
	if got := repo.tasks["t1"].Title; got != "v2" {
		t.Fatalf("final title = %q, want v2", got)
	}
	if size, _ := store.Size(); size != 0 {
		t.Fatalf("buffer not emptied, size = %d", size)
	}
}

func TestDrainDropsUpdateOlderThanStoredRow(t *testing.T) {
	repo := newMemTaskRepo()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.tasks["t1"] = domain.Task{ID: "t1", UserID: "u1", Title: "v0", UpdatedAt: base}

	bp, store := newProcessor(t, repo, staticHealth(true))
	ctx := context.Background()

	bufferUpdate(t, bp, "t1", "buffered", base.Add(time.Minute))

	// The user writes directly once Postgres is back, before the next drain.
	repo.tasks["t1"] = domain.Task{ID: "t1", UserID: "u1", Title: "fresh", UpdatedAt: base.Add(2 * time.Minute)}

	if err := bp.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := repo.tasks["t1"].Title; got != "fresh" {
		t.Fatalf("stale replay overwrote the row: title = %q", got)
	}
	if size, _ := store.Size(); size != 0 {
		t.Fatalf("stale item should be dropped, size = %d", size)
	}
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	repo := newMemTaskRepo()
	bp, store := newProcessor(t, repo, staticHealth(false))
	ctx := context.Background()

	_ = bp.BufferTask(ctx, usecase.OperationCreate, &domain.Task{ID: "t1", UserID: "u1"})
	if err := bp.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatal("replayed while offline")
	}
	if size, _ := store.Size(); size != 1 {
		t.Fatalf("size = %d", size)
	}
}

func TestDrainRetriesThenDrops(t *testing.T) {
	repo := newMemTaskRepo()
	repo.err = errors.New("connection reset")
	bp, store := newProcessor(t, repo, staticHealth(true))
	ctx := context.Background()

	_ = bp.BufferTask(ctx, usecase.OperationCreate, &domain.Task{ID: "t1", UserID: "u1"})

	_ = bp.Drain(ctx)
	if size, _ := store.Size(); size != 1 {
		t.Fatalf("first failure should requeue, size = %d", size)
	}
	_ = bp.Drain(ctx)
	if size, _ := store.Size(); size != 0 {
		t.Fatalf("item should be dropped after max retries, size = %d", size)
	}
}

func TestDrainDropsRejectedItems(t *testing.T) {
	repo := newMemTaskRepo()
	repo.err = domain.ErrTaskNotFound
	bp, store := newProcessor(t, repo, staticHealth(true))
	ctx := context.Background()

	_ = bp.BufferTask(ctx, usecase.OperationUpdate, &domain.Task{ID: "t1", UserID: "u1"})
	_ = bp.Drain(ctx)
	if size, _ := store.Size(); size != 0 {
		t.Fatalf("domain rejection should not be retried, size = %d", size)
	}
}
