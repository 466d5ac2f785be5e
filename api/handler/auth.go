package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/api/transport"
	"github.com/fastygo/todo-backend/pkg/httpcontext"
	authUC "github.com/fastygo/todo-backend/usecase/auth"
	profileUC "github.com/fastygo/todo-backend/usecase/profile"
)

// AuthHandler serves account registration, sessions and the current-user profile.
type AuthHandler struct {
	baseHandler
	uc      *authUC.UseCase
	profile *profileUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, profile *profileUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		profile:     profile,
	}
}

// @Summary Register an account
// @Tags auth
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(ctx *fasthttp.RequestCtx) {
	var req transport.SignupRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.Signup(stdCtx, req.Email, req.Password, req.Name)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusCreated, user)
}

// @Summary Open a session
// @Tags auth
// @Router /api/auth/signin [post]
func (h *AuthHandler) Signin(ctx *fasthttp.RequestCtx) {
	var req transport.SigninRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Signin(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, signinResponse(result))
}

// @Summary Extend the current session
// @Tags auth
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	sessionID := string(ctx.Request.Header.Peek(httpcontext.HeaderSessionID))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Refresh(stdCtx, sessionID, userID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, signinResponse(result))
}

// @Summary Revoke the current session
// @Tags auth
// @Router /api/auth/signout [post]
func (h *AuthHandler) Signout(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.Request.Header.Peek(httpcontext.HeaderSessionID))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Signout(stdCtx, sessionID); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondNoContent(ctx)
}

// @Summary Current user
// @Tags auth
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.profile.GetProfile(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.MeResponse{
		UserID:          user.ID,
		Email:           user.Email,
		Name:            user.Name,
		IsAuthenticated: true,
	})
}

// @Summary Update display name
// @Tags auth
// @Router /api/auth/me [put]
func (h *AuthHandler) UpdateMe(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.ProfileUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.profile.UpdateName(stdCtx, userID, req.Name)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, user)
}

func signinResponse(result *authUC.Result) transport.SigninResponse {
	return transport.SigninResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
	}
}
