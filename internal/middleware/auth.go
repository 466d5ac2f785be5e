package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/api/transport"
	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/pkg/httpcontext"
	"github.com/fastygo/todo-backend/pkg/token"
)

// SessionValidator confirms that a token's session has not been revoked.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, userID string) error
}

// JWTAuth authenticates bearer tokens and exposes the caller through the
// X-User-ID and X-Session-ID request headers.
func JWTAuth(tokens *token.Manager, sessions SessionValidator, timeout time.Duration, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(httpcontext.HeaderUserID)
			ctx.Request.Header.Del(httpcontext.HeaderSessionID)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				logger.Debug("rejected bearer token",
					zap.String("request_id", httpcontext.RequestID(ctx)),
					zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			if sessions != nil {
				stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
				err := sessions.ValidateSession(stdCtx, claims.SessionID, claims.UserID)
				cancel()
				if err != nil {
					if domain.IsDomainError(err, domain.ErrCodeNotFound) || domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
						unauthorized(ctx, "session expired")
						return
					}
					logger.Error("session lookup failed",
						zap.String("request_id", httpcontext.RequestID(ctx)),
						zap.Error(err))
					writeError(ctx, http.StatusInternalServerError, domain.ErrCodeInternal, "internal error")
					return
				}
			}

			ctx.Request.Header.Set(httpcontext.HeaderUserID, claims.UserID)
			ctx.Request.Header.Set(httpcontext.HeaderSessionID, claims.SessionID)

			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(ctx, http.StatusUnauthorized, domain.ErrCodeUnauthorized, message)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(transport.NewError(string(code), message).JSON())
}
