package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

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
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype string `json:"subtype"`
	Role    string `json:"role"`
}

type updateRequest struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype string `json:"subtype"`
	Role    string `json:"role"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID := companyParam(r)
	accounts, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	account, err := h.service.Get(r.Context(), companyParam(r), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
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
	account, err := h.service.Create(r.Context(), CreateInput{
		CompanyID: companyParam(r),
		Code:      req.Code,
		Name:      req.Name,
		Type:      AccountType(req.Type),
		Subtype:   req.Subtype,
		Role:      Role(req.Role),
	})
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.Update(r.Context(), UpdateInput{
		CompanyID: companyParam(r),
		ID:        id,
		Name:      req.Name,
		Type:      AccountType(req.Type),
		Subtype:   req.Subtype,
		Role:      Role(req.Role),
	})
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Deactivate(r.Context(), companyParam(r), id); err != nil {
		shared.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func companyParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	return id
}
