package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdmemo/internal/auth"
	"github.com/starford/mdmemo/internal/cardstore"
)

// RouterConfig carries the optional parts of the API router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	Users       auth.Provider
	// Events, if non-nil, is mounted at GET /events behind the same auth.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(store *cardstore.Store, cfg RouterConfig) chi.Router {
	h := NewHandler(store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	r.Use(UserMiddleware(cfg.Users))

	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.ListCards)
		r.Post("/", h.CreateCard)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCard)
			r.Patch("/", h.UpdateCard)
			r.Delete("/", h.DeleteCard)
			r.Post("/review", h.ReviewCard)
			r.Post("/reviewed", h.MarkReviewed)
			r.Get("/related", h.Related)
			r.Get("/backlinks", h.Backlinks)
			r.Get("/markdown", h.ExportMarkdown)
			r.Get("/html", h.RenderHTML)
		})
	})

	r.Get("/tags", h.Tags)
	r.Get("/due", h.Due)
	r.Get("/graph", h.Graph)
	r.Get("/activity", h.Activity)
	r.Get("/stats", h.Stats)
	r.Get("/me", h.Me)

	r.Get("/quiz/random", h.RandomQuestion)
	r.Post("/quiz/{id}/check", h.CheckAnswer)
	r.Post("/quiz/{id}/reveal", h.Reveal)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
