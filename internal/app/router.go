package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	"github.com/openbooks-erp/openbooks/internal/accounting/payments"
	"github.com/openbooks-erp/openbooks/internal/accounting/periods"
	"github.com/openbooks-erp/openbooks/internal/accounting/reports"
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/ar"
	"github.com/openbooks-erp/openbooks/internal/masterdata/customers"
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	"github.com/openbooks-erp/openbooks/internal/observability"
	"github.com/openbooks-erp/openbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AccountsHandler  *accounts.Handler
	JournalsHandler  *journals.Handler
	PeriodsHandler   *periods.Handler
	LedgerHandler    *ledger.Handler
	PaymentsHandler  *payments.Handler
	ReportsHandler   *reports.Handler
	InvoicesHandler  *ar.Handler
	BillsHandler     *ap.Handler
	CustomersHandler *customers.Handler
	SuppliersHandler *suppliers.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with OpenBooks defaults. Every domain
// route nests under the company scope.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			accounts.MountRoutes(r, params.AccountsHandler)
		})
		r.Route("/journal-entries", func(r chi.Router) {
			journals.MountRoutes(r, params.JournalsHandler)
		})
		r.Route("/periods", func(r chi.Router) {
			periods.MountRoutes(r, params.PeriodsHandler)
		})
		r.Route("/ledger", func(r chi.Router) {
			ledger.MountRoutes(r, params.LedgerHandler)
		})
		r.Route("/payments", func(r chi.Router) {
			payments.MountRoutes(r, params.PaymentsHandler)
		})
		r.Route("/reports", func(r chi.Router) {
			reports.MountRoutes(r, params.ReportsHandler)
		})
		r.Route("/invoices", func(r chi.Router) {
			ar.MountRoutes(r, params.InvoicesHandler)
		})
		r.Route("/bills", func(r chi.Router) {
			ap.MountRoutes(r, params.BillsHandler)
		})
		r.Route("/customers", func(r chi.Router) {
			customers.MountRoutes(r, params.CustomersHandler)
		})
		r.Route("/suppliers", func(r chi.Router) {
			suppliers.MountRoutes(r, params.SuppliersHandler)
		})
	})

	return r
}
