package middleware

import "net/http"

// Middleware wraps an http.Handler with cross-cutting logic.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware into one. mws[0] is the outermost
// wrapper: Chain(a, b)(handler) executes as a(b(handler)).
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
