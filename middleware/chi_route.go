package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouteContext returns the matched chi route pattern for r, or ""
// if r was not served through a chi router.
func chiRouteContext(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
