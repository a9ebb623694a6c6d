package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	"github.com/openbooks-erp/openbooks/internal/accounting/payments"
	"github.com/openbooks-erp/openbooks/internal/accounting/periods"
	"github.com/openbooks-erp/openbooks/internal/accounting/reports"
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/app"
	"github.com/openbooks-erp/openbooks/internal/ar"
	"github.com/openbooks-erp/openbooks/internal/integration"
	"github.com/openbooks-erp/openbooks/internal/masterdata/customers"
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	"github.com/openbooks-erp/openbooks/internal/observability"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
	"github.com/openbooks-erp/openbooks/internal/shared"
	"github.com/openbooks-erp/openbooks/jobs"
)

// openDocs adapts the AR/AP repositories to the allocation suggestion port.
type openDocs struct {
	invoices ar.Repository
	bills    ap.Repository
}

func (d openDocs) OpenInvoices(ctx context.Context, companyID, customerID int64) ([]ar.Invoice, error) {
	return d.invoices.ListOpenByCustomer(ctx, companyID, customerID)
}

func (d openDocs) OpenBills(ctx context.Context, companyID, supplierID int64) ([]ap.Bill, error) {
	return d.bills.ListOpenBySupplier(ctx, companyID, supplierID)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	journalsService := journals.NewService(journals.NewRepository(pool), auditLogger)
	periodsService := periods.NewService(periods.NewRepository(pool), journalsService, auditLogger)
	ledgerService := ledger.NewService(logger, ledger.NewRepository(pool))
	reportsService := reports.NewService(reports.NewRepository(pool))

	hooks := integration.NewHooks(accountsRepo)

	customersRepo := customers.NewRepository(pool)
	suppliersRepo := suppliers.NewRepository(pool)
	invoicesRepo := ar.NewRepository(pool)
	billsRepo := ap.NewRepository(pool)

	invoicesService := ar.NewService(invoicesRepo, customersRepo, journalsService, hooks, auditLogger)
	billsService := ap.NewService(billsRepo, suppliersRepo, journalsService, hooks, auditLogger)
	paymentsService := payments.NewService(payments.NewRepository(pool),
		openDocs{invoices: invoicesRepo, bills: billsRepo},
		journalsService, hooks, auditLogger)

	metrics := observability.NewMetrics()
	journalsService.WithMetrics(metrics)
	ledgerService.WithMetrics(metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AccountsHandler:  accounts.NewHandler(logger, accountsService),
		JournalsHandler:  journals.NewHandler(logger, journalsService),
		PeriodsHandler:   periods.NewHandler(logger, periodsService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		PaymentsHandler:  payments.NewHandler(logger, paymentsService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		InvoicesHandler:  ar.NewHandler(logger, invoicesService),
		BillsHandler:     ap.NewHandler(logger, billsService),
		CustomersHandler: customers.NewHandler(logger, customersRepo),
		SuppliersHandler: suppliers.NewHandler(logger, suppliersRepo),
		JobsHandler:      jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
