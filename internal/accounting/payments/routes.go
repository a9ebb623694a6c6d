package payments

import "github.com/go-chi/chi/v5"

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.List)
	r.Post("/", h.Record)
	r.Get("/suggest", h.Suggest)
	r.Get("/{id}", h.Get)
}
