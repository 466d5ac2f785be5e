package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

var corsAllowMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

const corsMaxAge = 600

// CORS permits credentialed cross-origin calls from the given origins with any
// method and any header. Requests from other origins are served without CORS
// headers; their preflights are refused with 400.
func CORS(origins []string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       corsAllowMethods,
		AllowedHeaders:       []string{"*"},
		AllowCredentials:     true,
		MaxAge:               corsMaxAge,
		OptionsSuccessStatus: http.StatusOK,
	})

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(ctx.Request.Header.Peek(fasthttp.HeaderOrigin)) == 0 {
				next(ctx)
				return
			}

			var req http.Request
			if err := fasthttpadaptor.ConvertRequest(ctx, &req, true); err != nil {
				logger.Warn("cors: cannot inspect request", zap.Error(err))
				next(ctx)
				return
			}
			w := &headerRecorder{header: make(http.Header)}

			if ctx.IsOptions() && req.Header.Get(fasthttp.HeaderAccessControlRequestMethod) != "" {
				if !policy.OriginAllowed(&req) {
					logger.Debug("cors preflight refused", zap.String("origin", req.Header.Get("Origin")))
					ctx.Response.Header.Add(fasthttp.HeaderVary, fasthttp.HeaderOrigin)
					ctx.SetStatusCode(fasthttp.StatusBadRequest)
					ctx.SetContentType("text/plain; charset=utf-8")
					ctx.SetBodyString("Disallowed CORS origin")
					return
				}
				policy.HandlerFunc(w, &req)
				w.apply(&ctx.Response.Header)
				ctx.SetStatusCode(w.statusOr(fasthttp.StatusOK))
				ctx.SetContentType("text/plain; charset=utf-8")
				ctx.SetBodyString("OK")
				return
			}

			policy.HandlerFunc(w, &req)
			next(ctx)
			w.apply(&ctx.Response.Header)
		}
	}
}

// headerRecorder captures the headers rs/cors writes so they can be copied
// onto the fasthttp response.
type headerRecorder struct {
	header http.Header
	status int
}

func (w *headerRecorder) Header() http.Header { return w.header }

func (w *headerRecorder) Write(b []byte) (int, error) { return len(b), nil }

func (w *headerRecorder) WriteHeader(status int) { w.status = status }

func (w *headerRecorder) statusOr(fallback int) int {
	if w.status == 0 {
		return fallback
	}
	return w.status
}

func (w *headerRecorder) apply(h *fasthttp.ResponseHeader) {
	for key, values := range w.header {
		for _, v := range values {
			h.Add(key, v)
		}
	}
}
