package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) ByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, _ := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	q := AccountQuery{CompanyID: companyParam(r), AccountID: accountID}
	if from := r.URL.Query().Get("from"); from != "" {
		q.From, _ = time.Parse("2006-01-02", from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		q.To, _ = time.Parse("2006-01-02", to)
	}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.ByAccount(r.Context(), q)
	if err != nil {
		h.logger.Error("ledger by account", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) ByJournalEntry(w http.ResponseWriter, r *http.Request) {
	entryID, _ := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	entries, err := h.service.ByJournalEntry(r.Context(), companyParam(r), entryID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	accountID, _ := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	result, err := h.service.RecomputeAccount(r.Context(), companyParam(r), accountID)
	if err != nil {
		h.logger.Error("ledger recompute", slog.Int64("account_id", accountID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.BackfillMissing(r.Context(), companyParam(r))
	if err != nil {
		h.logger.Error("ledger backfill", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}
