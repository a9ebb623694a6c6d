package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

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

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

type createEntryRequest struct {
	Date      string        `json:"date" validate:"required,datetime=2006-01-02"`
	Reference string        `json:"reference"`
	Memo      string        `json:"memo"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
	ActorID   int64         `json:"actor_id" validate:"required"`
}

type updateLinesRequest struct {
	ActorID int64         `json:"actor_id" validate:"required"`
	Lines   []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type actorRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), companyParam(r), limit, offset)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entryID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	entry, err := h.service.Get(r.Context(), companyParam(r), entryID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	in := CreateEntryInput{
		CompanyID: companyParam(r),
		Date:      date,
		Reference: req.Reference,
		Memo:      req.Memo,
		Type:      EntryTypeManual,
		CreatedBy: req.ActorID,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	entry, err := h.service.CreateEntry(r.Context(), in)
	if err != nil {
		h.logger.Error("create journal", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) UpdateLines(w http.ResponseWriter, r *http.Request) {
	entryID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req updateLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	in := UpdateLinesInput{
		CompanyID: companyParam(r),
		EntryID:   entryID,
		ActorID:   req.ActorID,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	entry, err := h.service.UpdateDraftLines(r.Context(), in)
	if err != nil {
		h.logger.Error("update journal lines", slog.Int64("entry_id", entryID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	entryID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostEntry(r.Context(), PostInput{
		CompanyID: companyParam(r),
		EntryID:   entryID,
		ActorID:   req.ActorID,
	})
	if err != nil {
		h.logger.Error("post journal", slog.Int64("entry_id", entryID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	entryID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	reversal, err := h.service.VoidEntry(r.Context(), VoidInput{
		CompanyID: companyParam(r),
		EntryID:   entryID,
		ActorID:   req.ActorID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.Error("void journal", slog.Int64("entry_id", entryID), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reversal)
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}
