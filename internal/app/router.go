package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/doha-roastery/roastery/internal/auth"
	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/beans"
	"github.com/doha-roastery/roastery/internal/masterdata/locations"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
	"github.com/doha-roastery/roastery/internal/observability"
	"github.com/doha-roastery/roastery/internal/pos"
	"github.com/doha-roastery/roastery/internal/rbac"
	reporthttp "github.com/doha-roastery/roastery/internal/reports/http"
	"github.com/doha-roastery/roastery/internal/roasting"
	"github.com/doha-roastery/roastery/internal/shared"
	"github.com/doha-roastery/roastery/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBAC           rbac.Middleware

	AuthHandler      *auth.Handler
	BeansHandler     *beans.Handler
	TemplatesHandler *templates.Handler
	ProductsHandler  *products.Handler
	LocationsHandler *locations.Handler
	RoastingHandler  *roasting.Handler
	InventoryHandler *inventory.Handler
	POSHandler       *pos.Handler
	ReportsHandler   *reporthttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	admin := string(auth.RoleAdmin)
	manager := string(auth.RoleManager)
	roaster := string(auth.RoleRoaster)
	cashier := string(auth.RoleCashier)
	warehouse := string(auth.RoleWarehouseStaff)

	r.Route("/masterdata", func(r chi.Router) {
		r.Use(params.RBAC.RequireRole(admin, manager))
		r.Route("/beans", params.BeansHandler.MountRoutes)
		r.Route("/templates", params.TemplatesHandler.MountRoutes)
		r.Route("/products", params.ProductsHandler.MountRoutes)
		r.Route("/locations", params.LocationsHandler.MountRoutes)
	})

	r.Route("/roasting/batches", func(r chi.Router) {
		r.Use(params.RBAC.RequireRole(admin, manager, roaster))
		params.RoastingHandler.MountRoutes(r)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Use(params.RBAC.RequireAuthenticated())
		r.Route("/items", params.InventoryHandler.MountItemRoutes)
		r.Route("/adjustments", func(r chi.Router) {
			params.InventoryHandler.MountAdjustmentRoutes(r)
			r.With(params.RBAC.RequireRole(admin, manager)).
				Post("/{id}/resolve", params.InventoryHandler.ResolveAdjustment)
		})
		r.Route("/transfers", func(r chi.Router) {
			params.InventoryHandler.MountTransferRoutes(r)
			r.With(params.RBAC.RequireRole(admin, manager)).
				Post("/{id}/approve", params.InventoryHandler.ApproveTransfer)
		})
	})

	r.Route("/pos", func(r chi.Router) {
		r.Use(params.RBAC.RequireRole(admin, manager, cashier))
		r.Route("/sales", func(r chi.Router) {
			params.POSHandler.MountSaleRoutes(r)
			r.With(params.RBAC.RequireRole(admin, manager)).
				Post("/{id}/reprints", params.POSHandler.Reprint)
		})
		r.Route("/shifts", params.POSHandler.MountShiftRoutes)
		r.Route("/returns", func(r chi.Router) {
			params.POSHandler.MountReturnRoutes(r)
			r.With(params.RBAC.RequireRole(admin, manager)).
				Post("/{id}/resolve", params.POSHandler.ResolveReturn)
		})
	})

	r.Route("/reports", func(r chi.Router) {
		r.Use(params.RBAC.RequireRole(admin, manager, roaster, warehouse))
		params.ReportsHandler.MountRoutes(r)
	})

	r.Route("/jobs", params.JobHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
