package reporthttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/doha-roastery/roastery/internal/platform/httpx"
	"github.com/doha-roastery/roastery/internal/reports"
	"github.com/doha-roastery/roastery/internal/reports/export"
	"github.com/doha-roastery/roastery/internal/shared"
)

// Handler coordinates HTTP requests for the reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *reports.Service
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service *reports.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report endpoints onto the router. CSV exports
// are rate limited per operator since they bypass the report cache's
// cheap JSON path.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/sales", h.Sales)
	r.Get("/yields", h.Yields)
	r.Get("/valuation", h.Valuation)
	r.Get("/expiring", h.Expiring)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/sales/export.csv", h.SalesCSV)
		gr.Get("/yields/export.csv", h.YieldsCSV)
		gr.Get("/valuation/export.csv", h.ValuationCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if operator := shared.OperatorFromContext(r.Context()); operator != "" {
		return "operator:" + operator, nil
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.salesSummary(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) SalesCSV(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.salesSummary(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-summary.csv"`)
	if err := export.WriteSalesSummaryCSV(w, summary); err != nil {
		h.logger.Error("sales summary csv", slog.Any("error", err))
	}
}

func (h *Handler) salesSummary(w http.ResponseWriter, r *http.Request) (reports.SalesSummary, bool) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return reports.SalesSummary{}, false
	}
	summary, err := h.service.SalesSummary(r.Context(), from, to, r.URL.Query().Get("location_id"))
	if err != nil {
		h.logger.Error("sales summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return reports.SalesSummary{}, false
	}
	return summary, true
}

func (h *Handler) Yields(w http.ResponseWriter, r *http.Request) {
	yields, ok := h.batchYields(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": yields})
}

func (h *Handler) YieldsCSV(w http.ResponseWriter, r *http.Request) {
	yields, ok := h.batchYields(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="batch-yields.csv"`)
	if err := export.WriteBatchYieldCSV(w, yields); err != nil {
		h.logger.Error("batch yields csv", slog.Any("error", err))
	}
}

func (h *Handler) batchYields(w http.ResponseWriter, r *http.Request) ([]reports.BatchYield, bool) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return nil, false
	}
	yields, err := h.service.BatchYields(r.Context(), from, to)
	if err != nil {
		h.logger.Error("batch yields", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return yields, true
}

func (h *Handler) Valuation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.InventoryValuation(r.Context(), r.URL.Query().Get("location_id"))
	if err != nil {
		h.logger.Error("inventory valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) ValuationCSV(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.InventoryValuation(r.Context(), r.URL.Query().Get("location_id"))
	if err != nil {
		h.logger.Error("inventory valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory-valuation.csv"`)
	if err := export.WriteValuationCSV(w, summary); err != nil {
		h.logger.Error("inventory valuation csv", slog.Any("error", err))
	}
}

func (h *Handler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		days, _ = strconv.Atoi(v)
	}
	lots, err := h.service.ExpiringLots(r.Context(), days)
	if err != nil {
		h.logger.Error("expiring lots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": lots})
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}
