package payments

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

type allocationRequest struct {
	DocumentID int64           `json:"document_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

type recordRequest struct {
	Type           string              `json:"type" validate:"required,oneof=RECEIVED MADE"`
	CounterpartyID int64               `json:"counterparty_id" validate:"required"`
	PaymentDate    string              `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Amount         decimal.Decimal     `json:"amount" validate:"required"`
	Method         string              `json:"method"`
	Reference      string              `json:"reference"`
	Memo           string              `json:"memo"`
	BankAccountID  int64               `json:"bank_account_id" validate:"required"`
	Allocations    []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
	ActorID        int64               `json:"actor_id" validate:"required"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	payments, err := h.service.List(r.Context(), companyParam(r), limit, offset)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	payment, err := h.service.Get(r.Context(), companyParam(r), paymentID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	counterpartyID, _ := strconv.ParseInt(r.URL.Query().Get("counterparty_id"), 10, 64)
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
		return
	}
	paymentType := PaymentType(r.URL.Query().Get("type"))
	result, err := h.service.Suggest(r.Context(), companyParam(r), paymentType, counterpartyID, amount)
	if err != nil {
		h.logger.Error("suggest allocations", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	paymentDate, _ := time.Parse("2006-01-02", req.PaymentDate)
	in := RecordInput{
		CompanyID:      companyParam(r),
		Type:           PaymentType(req.Type),
		CounterpartyID: req.CounterpartyID,
		PaymentDate:    paymentDate,
		Amount:         req.Amount,
		Method:         req.Method,
		Reference:      req.Reference,
		Memo:           req.Memo,
		BankAccountID:  req.BankAccountID,
		CreatedBy:      req.ActorID,
	}
	for _, alloc := range req.Allocations {
		in.Allocations = append(in.Allocations, AllocationInput{DocumentID: alloc.DocumentID, Amount: alloc.Amount})
	}
	payment, err := h.service.RecordPayment(r.Context(), in)
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}
