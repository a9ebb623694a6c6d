package reports

import "github.com/go-chi/chi/v5"

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/accounts/{accountID}/balance", h.AccountBalance)
}
