package transport

import (
	"encoding/json"
	"time"

	"github.com/fastygo/todo-backend/domain"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Status  string      `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// NewError returns an error body for the given code.
func NewError(code string, message string) ErrorResponse {
	return ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	}
}

// WithDetails attaches extra context, e.g. dependency status.
func (e ErrorResponse) WithDetails(details interface{}) ErrorResponse {
	e.Details = details
	return e
}

// JSON returns the encoded body, falling back to a minimal error document.
func (e ErrorResponse) JSON() []byte {
	out, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"status":"error","code":"INTERNAL","message":"internal error"}`)
	}
	return out
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SigninResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type MeResponse struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsAuthenticated bool   `json:"is_authenticated"`
}
