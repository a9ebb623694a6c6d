package ap

import "github.com/go-chi/chi/v5"

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/open/{supplierID}", h.OpenBySupplier)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/void", h.Void)
}
