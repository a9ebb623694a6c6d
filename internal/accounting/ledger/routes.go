package ledger

import "github.com/go-chi/chi/v5"

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/accounts/{accountID}", h.ByAccount)
	r.Get("/journal-entries/{entryID}", h.ByJournalEntry)
	r.Post("/accounts/{accountID}/recompute", h.Recompute)
	r.Post("/backfill", h.Backfill)
}
