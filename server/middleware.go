package server

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middleware into a single middleware
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logger logs request method, path, duration, and — for routes shaped
// like the posts API's "/api/posts/{id}" — the id path value, so a
// single request line already carries the argument an Endpoint would
// have cached under.
func Logger(log logr.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			fields := []any{"method", r.Method, "path", r.URL.Path, "duration", time.Since(start)}
			if id := r.PathValue("id"); id != "" {
				fields = append(fields, "postID", id)
			}
			log.V(1).Info("request", fields...)
		})
	}
}

// CORS adds Cross-Origin Resource Sharing headers
func CORS(opts CORSOptions) Middleware {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.AllowMethods == "" {
		opts.AllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	if opts.AllowHeaders == "" {
		opts.AllowHeaders = "Content-Type, Authorization"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", opts.AllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", opts.AllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", opts.AllowHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type CORSOptions struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
}

// Recover catches panics and returns 500
func Recover(log logr.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error(nil, "panic", "value", err, "path", r.URL.Path)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID stamps each request with a fresh UUID, the same attempt-
// token scheme query.Execution uses to identify one fetch attempt
// among concurrent ones (query/execution.go), applied here to
// identify one HTTP request among concurrent ones.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Request-ID", uuid.New().String())
			next.ServeHTTP(w, r)
		})
	}
}
