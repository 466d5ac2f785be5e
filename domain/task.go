package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TaskTitleMaxLen       = 200
	TaskDescriptionMaxLen = 1000
)

// Task statuses accepted by list filters.
const (
	TaskStatusAll       = "all"
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Task sort keys accepted by list queries.
const (
	TaskSortCreated = "created"
	TaskSortTitle   = "title"
	TaskSortDueDate = "due_date"
)

// Task represents a todo item owned by exactly one user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Normalize trims user-supplied text fields in place.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
}

// Validate checks the title and description bounds.
func (t *Task) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	switch n := utf8.RuneCountInString(t.Title); {
	case n == 0:
		return Invalid("title is required")
	case n > TaskTitleMaxLen:
		return Invalid("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(t.Description) > TaskDescriptionMaxLen {
		return Invalid("description must be at most 1000 characters")
	}
	return nil
}

func (t *Task) IsOverdue(reference time.Time) bool {
	if t == nil || t.Completed || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(reference)
}

// TaskSummary aggregates task counters for a single owner.
type TaskSummary struct {
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Completed int    `json:"completed"`
	Overdue   int    `json:"overdue"`
	Message   string `json:"message"`
}

// ValidTaskStatus reports whether s is an accepted list filter ("" means all).
func ValidTaskStatus(s string) bool {
	switch s {
	case "", TaskStatusAll, TaskStatusPending, TaskStatusCompleted:
		return true
	}
	return false
}

// ValidTaskSort reports whether s is an accepted sort key ("" means created).
func ValidTaskSort(s string) bool {
	switch s {
	case "", TaskSortCreated, TaskSortTitle, TaskSortDueDate:
		return true
	}
	return false
}
