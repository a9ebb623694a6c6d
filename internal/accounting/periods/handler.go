package periods

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type createRequest struct {
	Name       string `json:"name" validate:"required"`
	PeriodType string `json:"period_type" validate:"required,oneof=MONTHLY QUARTERLY ANNUAL"`
	FiscalYear int    `json:"fiscal_year" validate:"required,min=1900"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Notes      string `json:"notes"`
}

type actorRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.List(r.Context(), companyParam(r))
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.Get(r.Context(), companyParam(r), periodParam(r))
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	period, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:  companyParam(r),
		Name:       req.Name,
		PeriodType: PeriodType(req.PeriodType),
		FiscalYear: req.FiscalYear,
		StartDate:  start,
		EndDate:    end,
		Notes:      req.Notes,
	})
	if err != nil {
		h.logger.Error("create period", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Close(r.Context(), companyParam(r), periodParam(r), req.ActorID, req.Reason)
	if err != nil {
		h.logger.Error("close period", slog.Int64("period_id", periodParam(r)), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	period, err := h.service.Reopen(r.Context(), companyParam(r), periodParam(r), req.ActorID, req.Reason)
	if err != nil {
		h.logger.Error("reopen period", slog.Int64("period_id", periodParam(r)), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	period, err := h.service.Lock(r.Context(), companyParam(r), periodParam(r), req.ActorID)
	if err != nil {
		h.logger.Error("lock period", slog.Int64("period_id", periodParam(r)), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) decodeActor(w http.ResponseWriter, r *http.Request) (actorRequest, bool) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}

func periodParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
