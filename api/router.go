package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/garv190/outbox-email-project/engine"
	appmiddleware "github.com/garv190/outbox-email-project/middleware"
)

// API wires the scheduler's HTTP ingress and status routes onto a
// chi.Router.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from a running Engine.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	return &API{eng: eng, logger: logger}
}

// Handler returns the fully assembled http.Handler with all routes and
// middleware.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(appmiddleware.Recover(a.logger))
	r.Use(appmiddleware.Logging(a.logger))
	r.Use(appmiddleware.Metrics())
	r.Use(appmiddleware.Tracing())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", a.status)

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", a.createCampaign)
			r.Get("/", a.listCampaigns)
			r.Get("/{campaignId}/dispatches", a.listCampaignDispatches)
		})

		r.Route("/dispatches", func(r chi.Router) {
			r.Get("/scheduled", a.listScheduledDispatches)
			r.Get("/sent", a.listSentDispatches)
		})
	})

	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
