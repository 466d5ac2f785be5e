package middleware

import (
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

var testOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000", "https://app.example.com"}

func okHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(`{"message":"Todo Backend API"}`)
}

func newRequest(method, origin string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI("/api/tasks")
	if origin != "" {
		ctx.Request.Header.Set(fasthttp.HeaderOrigin, origin)
	}
	return ctx
}

func TestCORSSimpleRequests(t *testing.T) {
	handler := CORS(testOrigins, nil)(okHandler)

	tests := []struct {
		name        string
		origin      string
		allowOrigin string
	}{
		{name: "no origin", origin: "", allowOrigin: ""},
		{name: "localhost", origin: "http://localhost:3000", allowOrigin: "http://localhost:3000"},
		{name: "loopback ip", origin: "http://127.0.0.1:3000", allowOrigin: "http://127.0.0.1:3000"},
		{name: "configured frontend", origin: "https://app.example.com", allowOrigin: "https://app.example.com"},
		{name: "unknown origin", origin: "https://evil.example.com", allowOrigin: ""},
		{name: "port mismatch", origin: "http://localhost:3001", allowOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newRequest(fasthttp.MethodGet, tt.origin)
			handler(ctx)

			if ctx.Response.StatusCode() != fasthttp.StatusOK {
				t.Fatalf("status = %d", ctx.Response.StatusCode())
			}
			got := string(ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowOrigin))
			if got != tt.allowOrigin {
				t.Fatalf("allow-origin = %q, want %q", got, tt.allowOrigin)
			}
			creds := string(ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowCredentials))
			if tt.allowOrigin != "" && creds != "true" {
				t.Fatalf("allow-credentials = %q", creds)
			}
			if tt.allowOrigin == "" && creds != "" {
				t.Fatalf("unexpected allow-credentials %q", creds)
			}
			if vary := string(ctx.Response.Header.Peek(fasthttp.HeaderVary)); tt.origin != "" && !strings.Contains(vary, fasthttp.HeaderOrigin) {
				t.Fatalf("vary = %q, want Origin", vary)
			}
		})
	}
}

func TestCORSPreflightAllowed(t *testing.T) {
	called := false
	handler := CORS(testOrigins, nil)(func(ctx *fasthttp.RequestCtx) { called = true })

	ctx := newRequest(fasthttp.MethodOptions, "http://localhost:3000")
	ctx.Request.Header.Set(fasthttp.HeaderAccessControlRequestMethod, fasthttp.MethodDelete)
	ctx.Request.Header.Set(fasthttp.HeaderAccessControlRequestHeaders, "Authorization, Content-Type")
	handler(ctx)

	if called {
		t.Fatal("preflight must not reach the route handler")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	h := &ctx.Response.Header
	if got := string(h.Peek(fasthttp.HeaderAccessControlAllowOrigin)); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
	if got := string(h.Peek(fasthttp.HeaderAccessControlAllowMethods)); got != fasthttp.MethodDelete {
		t.Fatalf("allow-methods = %q", got)
	}
	if got := string(h.Peek(fasthttp.HeaderAccessControlAllowCredentials)); got != "true" {
		t.Fatalf("allow-credentials = %q", got)
	}
	if got := string(h.Peek(fasthttp.HeaderAccessControlAllowHeaders)); got != "Authorization, Content-Type" {
		t.Fatalf("allow-headers = %q", got)
	}
	if got := string(h.Peek(fasthttp.HeaderAccessControlMaxAge)); got != "600" {
		t.Fatalf("max-age = %q", got)
	}
}

func TestCORSPreflightRefused(t *testing.T) {
	handler := CORS(testOrigins, nil)(okHandler)

	ctx := newRequest(fasthttp.MethodOptions, "https://evil.example.com")
	ctx.Request.Header.Set(fasthttp.HeaderAccessControlRequestMethod, fasthttp.MethodPost)
	handler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "Disallowed CORS origin" {
		t.Fatalf("body = %q", ctx.Response.Body())
	}
	if got := ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowOrigin); len(got) != 0 {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if vary := string(ctx.Response.Header.Peek(fasthttp.HeaderVary)); !strings.Contains(vary, fasthttp.HeaderOrigin) {
		t.Fatalf("vary = %q, want Origin", vary)
	}
}

func TestCORSPlainOptionsPassesThrough(t *testing.T) {
	called := false
	handler := CORS(testOrigins, nil)(func(ctx *fasthttp.RequestCtx) { called = true })

	ctx := newRequest(fasthttp.MethodOptions, "http://localhost:3000")
	handler(ctx)

	if !called {
		t.Fatal("OPTIONS without Access-Control-Request-Method is not a preflight")
	}
}
