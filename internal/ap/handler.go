package ap

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

type createRequest struct {
	SupplierID       int64           `json:"supplier_id" validate:"required"`
	BillDate         string          `json:"bill_date" validate:"required,datetime=2006-01-02"`
	DueDate          string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Memo             string          `json:"memo"`
	ExpenseAccountID int64           `json:"expense_account_id" validate:"required"`
	Subtotal         decimal.Decimal `json:"subtotal" validate:"required"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	ActorID          int64           `json:"actor_id" validate:"required"`
}

type actorRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	bills, err := h.service.List(r.Context(), companyParam(r), limit, offset)
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	bill, err := h.service.Get(r.Context(), companyParam(r), idParam(r))
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) OpenBySupplier(w http.ResponseWriter, r *http.Request) {
	supplierID, _ := strconv.ParseInt(chi.URLParam(r, "supplierID"), 10, 64)
	bills, err := h.service.ListOpenBySupplier(r.Context(), companyParam(r), supplierID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
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
	billDate, _ := time.Parse("2006-01-02", req.BillDate)
	dueDate := billDate
	if req.DueDate != "" {
		dueDate, _ = time.Parse("2006-01-02", req.DueDate)
	}
	bill, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:        companyParam(r),
		SupplierID:       req.SupplierID,
		BillDate:         billDate,
		DueDate:          dueDate,
		Memo:             req.Memo,
		ExpenseAccountID: req.ExpenseAccountID,
		Subtotal:         req.Subtotal,
		TaxAmount:        req.TaxAmount,
		CreatedBy:        req.ActorID,
	})
	if err != nil {
		h.logger.Error("create bill", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	bill, err := h.service.Post(r.Context(), companyParam(r), idParam(r), req.ActorID)
	if err != nil {
		h.logger.Error("post bill", slog.Int64("bill_id", idParam(r)), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeActor(w, r)
	if !ok {
		return
	}
	bill, err := h.service.Void(r.Context(), companyParam(r), idParam(r), req.ActorID, req.Reason)
	if err != nil {
		h.logger.Error("void bill", slog.Int64("bill_id", idParam(r)), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
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

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
