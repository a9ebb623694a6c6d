package periods

import "github.com/go-chi/chi/v5"

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/reopen", h.Reopen)
	r.Post("/{id}/lock", h.Lock)
}
