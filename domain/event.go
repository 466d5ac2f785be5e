package domain

import "time"

const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskDeleted   = "task.deleted"
)

// TaskEvent describes a change applied to a task.
type TaskEvent struct {
	Type       string    `json:"type"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	Task       *Task     `json:"task,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewTaskEvent(eventType string, task *Task, at time.Time) TaskEvent {
	evt := TaskEvent{Type: eventType, OccurredAt: at.UTC()}
	if task != nil {
		evt.TaskID = task.ID
		evt.UserID = task.UserID
		if eventType != EventTaskDeleted {
			snapshot := *task
			evt.Task = &snapshot
		}
	}
	return evt
}
