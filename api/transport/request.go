package transport

import (
	"encoding/json"
	"time"
)

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type ProfileUpdateRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type TaskCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskUpdateRequest is a partial update: absent fields are left untouched.
// DueDate distinguishes an absent key from an explicit null, which clears it.
type TaskUpdateRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Completed   *bool           `json:"completed"`
	DueDate     json.RawMessage `json:"due_date"`
}

// DueDatePatch decodes DueDate. set reports whether the key was present.
func (r TaskUpdateRequest) DueDatePatch() (due *time.Time, set bool, err error) {
	if len(r.DueDate) == 0 {
		return nil, false, nil
	}
	if string(r.DueDate) == "null" {
		return nil, true, nil
	}
	var parsed time.Time
	if err := json.Unmarshal(r.DueDate, &parsed); err != nil {
		return nil, true, err
	}
	return &parsed, true, nil
}
