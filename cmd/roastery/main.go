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
	"github.com/redis/go-redis/v9"

	"github.com/doha-roastery/roastery/internal/app"
	"github.com/doha-roastery/roastery/internal/auth"
	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/beans"
	"github.com/doha-roastery/roastery/internal/masterdata/locations"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
	"github.com/doha-roastery/roastery/internal/observability"
	"github.com/doha-roastery/roastery/internal/platform/db"
	"github.com/doha-roastery/roastery/internal/pos"
	"github.com/doha-roastery/roastery/internal/rbac"
	"github.com/doha-roastery/roastery/internal/reports"
	reporthttp "github.com/doha-roastery/roastery/internal/reports/http"
	"github.com/doha-roastery/roastery/internal/roasting"
	"github.com/doha-roastery/roastery/internal/shared"
	"github.com/doha-roastery/roastery/jobs"
)

// catalog adapts the master data repositories to the allocation
// service's lookup port.
type catalog struct {
	products  products.Repository
	templates templates.Repository
}

func (c catalog) Products(ctx context.Context, ids []string) (map[string]products.Product, error) {
	return c.products.GetMany(ctx, ids)
}

func (c catalog) Templates(ctx context.Context, ids []string) (map[string]templates.Template, error) {
	return c.templates.GetMany(ctx, ids)
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

	logger := app.NewLogger(cfg, "api")

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "roastery_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	allocationMutex := shared.NewMutex(redisClient, cfg.AllocationLockTTL)

	beansService := beans.NewService(beans.NewRepository(pool))
	templatesRepo := templates.NewRepository(pool)
	templatesService := templates.NewService(templatesRepo)
	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)
	locationsService := locations.NewService(locations.NewRepository(pool))

	metrics := observability.NewMetrics()

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache)

	roastingRepo := roasting.NewRepository(pool)
	roastingService := roasting.NewService(roastingRepo,
		catalog{products: productsRepo, templates: templatesRepo},
		auditLogger, idempotencyStore, allocationMutex, metrics, reportsService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, idempotencyStore, metrics, reportsService,
		inventory.ServiceConfig{ApprovalThreshold: cfg.AdjustmentApprovalThreshold})

	posRepo := pos.NewRepository(pool)
	posService := pos.NewService(posRepo, productsService, auditLogger, idempotencyStore, metrics, reportsService,
		pos.ServiceConfig{TaxRate: cfg.TaxRate})
	rbacMiddleware := rbac.Middleware{Logger: logger}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBAC:           rbacMiddleware,

		AuthHandler:      authHandler,
		BeansHandler:     beans.NewHandler(logger, beansService),
		TemplatesHandler: templates.NewHandler(logger, templatesService),
		ProductsHandler:  products.NewHandler(logger, productsService),
		LocationsHandler: locations.NewHandler(logger, locationsService),
		RoastingHandler:  roasting.NewHandler(logger, roastingService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		POSHandler:       pos.NewHandler(logger, posService),
		ReportsHandler:   reporthttp.NewHandler(logger, reportsService),
		JobHandler:       jobs.NewHandler(inspector, logger),
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
