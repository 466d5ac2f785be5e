package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/todo-backend/api/transport"
	"github.com/fastygo/todo-backend/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.Invalid("title is required"), http.StatusBadRequest, "INVALID"},
		{domain.ErrEmailTaken, http.StatusConflict, "CONFLICT"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.NewError(domain.ErrCodeForbidden, "nope"), http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("wrapped: %w", domain.ErrUserNotFound), http.StatusNotFound, "NOT_FOUND"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		status, code := mapError(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("mapError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	h := newBaseHandler(nil, nil)

	ctx := &fasthttp.RequestCtx{}
	h.respondError(ctx, context.Background(), errors.New("pq: password authentication failed"))
	var body transport.ErrorResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ctx.Response.StatusCode() != http.StatusInternalServerError || body.Message != "internal error" {
		t.Fatalf("got %d %+v", ctx.Response.StatusCode(), body)
	}

	ctx = &fasthttp.RequestCtx{}
	h.respondError(ctx, context.Background(), domain.ErrTaskNotFound)
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Message != "task not found" {
		t.Fatalf("got %+v", body)
	}
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	h := newBaseHandler(nil, nil)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "not json", body: "{", msg: "invalid payload"},
		{name: "missing email", body: `{"password":"longenough"}`, msg: "email is required"},
		{name: "bad email", body: `{"email":"nope","password":"longenough"}`, msg: "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &fasthttp.RequestCtx{}
			ctx.Request.SetBodyString(tt.body)
			var req transport.SignupRequest
			if h.decode(ctx, &req) {
				t.Fatal("decode accepted the body")
			}
			var body transport.ErrorResponse
			if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ctx.Response.StatusCode() != http.StatusBadRequest || body.Message != tt.msg {
				t.Fatalf("got %d %+v", ctx.Response.StatusCode(), body)
			}
		})
	}
}
