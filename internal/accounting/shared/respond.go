package shared

import (
	"errors"
	"net/http"

	"github.com/openbooks-erp/openbooks/internal/platform/httpx"
)

// RespondError translates the accounting error taxonomy into RFC7807 problem
// responses. Handlers call this instead of mapping sentinels one by one.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrRoleAccountMissing):
		httpx.Problem(w, http.StatusConflict, "Chart of Accounts Incomplete", err.Error())
	case IsPeriodFenced(err):
		httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case IsNotFound(err):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrAccountTypeImmutable), errors.Is(err, ErrSourceAlreadyLinked),
		errors.Is(err, ErrEntrySourceOwned):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "Concurrent Update", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
