package roasting

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doha-roastery/roastery/internal/platform/httpx"
	"github.com/doha-roastery/roastery/internal/shared"
)

// Handler exposes the roast batch API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers batch endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Start)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/finish", h.Finish)
	r.Post("/{id}/allocations", h.Allocate)
	r.Delete("/{id}", h.Delete)
}

type batchResponse struct {
	Batch
	RemainingKg float64 `json:"remaining_kg"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search:    r.URL.Query().Get("search"),
		Level:     Level(r.URL.Query().Get("level")),
		ReadyOnly: r.URL.Query().Get("ready") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	batches, remaining, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list roast batches", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchResponse{Batch: b, RemainingKg: remaining[b.ID]})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	batch, remaining, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, batchResponse{Batch: batch, RemainingKg: remaining})
}

type startBatchRequest struct {
	BeanID      string  `json:"bean_id" validate:"required"`
	RoastDate   string  `json:"roast_date"`
	Level       string  `json:"level" validate:"required,oneof=Light Medium Dark"`
	PreWeightKg float64 `json:"pre_weight_kg" validate:"required,gt=0"`
	Notes       string  `json:"notes"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	roastDate, err := parseDate(req.RoastDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roast_date must be YYYY-MM-DD")
		return
	}

	batch, err := h.service.StartBatch(r.Context(), StartBatchInput{
		BeanID:      req.BeanID,
		RoastDate:   roastDate,
		Level:       Level(req.Level),
		PreWeightKg: req.PreWeightKg,
		Operator:    shared.OperatorFromContext(r.Context()),
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, batchResponse{Batch: batch, RemainingKg: 0})
}

type finishBatchRequest struct {
	PostWeightKg float64 `json:"post_weight_kg" validate:"required,gt=0"`
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	var req finishBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	batch, err := h.service.FinishBatch(r.Context(), FinishBatchInput{
		BatchID:      chi.URLParam(r, "id"),
		PostWeightKg: req.PostWeightKg,
		Operator:     shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, batchResponse{Batch: batch, RemainingKg: batch.PostWeightKg})
}

type allocationLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type allocateRequest struct {
	LocationID     string                  `json:"location_id" validate:"required"`
	ClientRef      string                  `json:"client_ref" validate:"required,uuid4"`
	ProductionDate string                  `json:"production_date" validate:"required"`
	PackagingDate  string                  `json:"packaging_date"`
	Lines          []allocationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	productionDate, err := parseDate(req.ProductionDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "production_date must be YYYY-MM-DD")
		return
	}
	packagingDate, err := parseDate(req.PackagingDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "packaging_date must be YYYY-MM-DD")
		return
	}

	lines := make([]AllocationLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, AllocationLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	plan, err := h.service.Allocate(r.Context(), AllocationRequest{
		BatchID:        chi.URLParam(r, "id"),
		LocationID:     req.LocationID,
		Operator:       shared.OperatorFromContext(r.Context()),
		ClientRef:      req.ClientRef,
		ProductionDate: productionDate,
		PackagingDate:  packagingDate,
		Lines:          lines,
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"units":           plan.Units,
		"total_weight_kg": plan.TotalWeightKg,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), shared.OperatorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrBatchNotFound), errors.Is(err, ErrBeanNotFound):
		return httpx.ErrNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidLine):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientWeight),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrVersionConflict),
		errors.Is(err, shared.ErrIdempotencyConflict):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	default:
		return err
	}
}
