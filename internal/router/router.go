package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/todo-backend/api/handler"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Task   *apiHandler.TaskHandler
	Health *apiHandler.HealthHandler
}

// New mounts the public routes at the root and the application routes under /api.
func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/", handlers.Health.Root)
	r.GET("/health", handlers.Health.Check)

	r.POST("/api/auth/signup", handlers.Auth.Signup)
	r.POST("/api/auth/signin", handlers.Auth.Signin)
	r.POST("/api/auth/refresh", authMiddleware(handlers.Auth.Refresh))
	r.POST("/api/auth/signout", authMiddleware(handlers.Auth.Signout))
	r.GET("/api/auth/me", authMiddleware(handlers.Auth.Me))
	r.PUT("/api/auth/me", authMiddleware(handlers.Auth.UpdateMe))

	r.GET("/api/tasks", authMiddleware(handlers.Task.List))
	r.POST("/api/tasks", authMiddleware(handlers.Task.Create))
	r.GET("/api/tasks/summary", authMiddleware(handlers.Task.Summary))
	r.GET("/api/tasks/{id}", authMiddleware(handlers.Task.Get))
	r.PUT("/api/tasks/{id}", authMiddleware(handlers.Task.Update))
	r.PATCH("/api/tasks/{id}/complete", authMiddleware(handlers.Task.Toggle))
	r.DELETE("/api/tasks/{id}", authMiddleware(handlers.Task.Delete))

	return r
}
