// Package middleware provides composable HTTP middleware for the
// ingress API.
//
// Middleware wraps an http.Handler with cross-cutting logic (recover
// from panics, log requests, record metrics) and is composed with
// [Chain] in outermost-to-innermost order.
//
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//	handler = chain(handler)
package middleware
