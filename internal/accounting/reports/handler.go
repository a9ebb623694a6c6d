package reports

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
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := h.asOfParam(r)
	tb, err := h.service.TrialBalance(r.Context(), companyParam(r), asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, _ := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	balance, err := h.service.AccountBalance(r.Context(), companyParam(r), accountID, h.asOfParam(r))
	if err != nil {
		h.logger.Error("account balance", slog.Int64("account_id", accountID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

func (h *Handler) asOfParam(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err := time.Parse("2006-01-02", raw); err == nil {
			return asOf
		}
	}
	return h.now()
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}
