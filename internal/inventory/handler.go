package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doha-roastery/roastery/internal/platform/httpx"
	"github.com/doha-roastery/roastery/internal/shared"
)

// Handler exposes the inventory API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountItemRoutes registers inventory item endpoints.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.ListItems)
	r.Get("/{id}", h.GetItem)
}

// MountAdjustmentRoutes registers adjustment endpoints. Resolution is
// expected to sit behind a manager-only route group.
func (h *Handler) MountAdjustmentRoutes(r chi.Router) {
	r.Get("/", h.ListAdjustments)
	r.Post("/", h.SubmitAdjustment)
}

// MountTransferRoutes registers transfer order endpoints. Approval is
// mounted separately so the router can restrict it to managers.
func (h *Handler) MountTransferRoutes(r chi.Router) {
	r.Get("/", h.ListTransfers)
	r.Post("/", h.CreateTransfer)
	r.Get("/{id}", h.GetTransfer)
	r.Post("/{id}/complete", h.advanceHandler(TransferActionComplete))
	r.Post("/{id}/cancel", h.advanceHandler(TransferActionCancel))
}

// ApproveTransfer moves a draft transfer to APPROVED.
func (h *Handler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.advanceHandler(TransferActionApprove)(w, r)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter := ItemFilter{
		LocationID: r.URL.Query().Get("location_id"),
		ProductID:  r.URL.Query().Get("product_id"),
		Search:     r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("expiring_in_days"); v != "" {
		filter.ExpiringInDay, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("list inventory items", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	adjustments, err := h.service.ListAdjustments(r.Context(), AdjustmentStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.logger.Error("list adjustments", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": adjustments})
}

type submitAdjustmentRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes" validate:"required,min=10"`
}

func (h *Handler) SubmitAdjustment(w http.ResponseWriter, r *http.Request) {
	var req submitAdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	adjustment, err := h.service.SubmitAdjustment(r.Context(), SubmitAdjustmentInput{
		ItemID:      req.ItemID,
		Delta:       req.Delta,
		Reason:      req.Reason,
		Notes:       req.Notes,
		RequestedBy: shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, adjustment)
}

type resolveAdjustmentRequest struct {
	Approve bool `json:"approve"`
}

// ResolveAdjustment decides a pending adjustment. Mounted separately so
// the router can restrict it to managers.
func (h *Handler) ResolveAdjustment(w http.ResponseWriter, r *http.Request) {
	var req resolveAdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	adjustment, err := h.service.ResolveAdjustment(r.Context(), ResolveAdjustmentInput{
		AdjustmentID: chi.URLParam(r, "id"),
		Approve:      req.Approve,
		ResolvedBy:   shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, adjustment)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	orders, err := h.service.ListTransfers(r.Context(), TransferStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.logger.Error("list transfers", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type createTransferRequest struct {
	SourceLocationID string                      `json:"source_location_id" validate:"required"`
	DestLocationID   string                      `json:"dest_location_id" validate:"required"`
	Notes            string                      `json:"notes"`
	Lines            []createTransferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createTransferLineRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lines := make([]CreateTransferLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, CreateTransferLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	order, err := h.service.CreateTransfer(r.Context(), CreateTransferInput{
		SourceLocation: req.SourceLocationID,
		DestLocation:   req.DestLocationID,
		Notes:          req.Notes,
		CreatedBy:      shared.OperatorFromContext(r.Context()),
		Lines:          lines,
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) advanceHandler(action TransferAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := h.service.AdvanceTransfer(r.Context(), chi.URLParam(r, "id"), action, shared.OperatorFromContext(r.Context()))
		if err != nil {
			httpx.RespondError(w, mapError(err))
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrAdjustmentNotFound), errors.Is(err, ErrTransferNotFound):
		return httpx.ErrNotFound
	case errors.Is(err, ErrValidation):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInsufficientStock), errors.Is(err, shared.ErrIdempotencyConflict):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	default:
		return err
	}
}
