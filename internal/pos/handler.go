package pos

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/platform/httpx"
	"github.com/doha-roastery/roastery/internal/shared"
)

// Handler exposes the register API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountSaleRoutes registers checkout and sale lookup endpoints. Reprint
// is mounted separately so the router can restrict it to managers.
func (h *Handler) MountSaleRoutes(r chi.Router) {
	r.Get("/", h.ListSales)
	r.Post("/", h.Checkout)
	r.Get("/{id}", h.GetSale)
	r.Get("/{id}/receipt", h.Receipt)
	r.Get("/{id}/reprints", h.ListReprints)
}

// MountShiftRoutes registers shift endpoints.
func (h *Handler) MountShiftRoutes(r chi.Router) {
	r.Post("/open", h.OpenShift)
	r.Post("/{id}/close", h.CloseShift)
	r.Post("/{id}/movements", h.RecordCashMovement)
	r.Get("/{id}/movements", h.ListCashMovements)
}

// MountReturnRoutes registers return submission and listing.
func (h *Handler) MountReturnRoutes(r chi.Router) {
	r.Get("/", h.ListReturns)
	r.Post("/", h.SubmitReturn)
}

type checkoutLineRequest struct {
	ItemID    string   `json:"item_id" validate:"required_without=ProductID,excluded_with=ProductID"`
	ProductID string   `json:"product_id" validate:"required_without=ItemID"`
	Size      string   `json:"size" validate:"omitempty,oneof=S M L"`
	AddOnIDs  []string `json:"add_on_ids" validate:"omitempty,dive,required"`
	Quantity  int      `json:"quantity" validate:"required,gt=0"`
}

type paymentBreakdownRequest struct {
	Cash          float64 `json:"cash" validate:"gte=0"`
	Card          float64 `json:"card" validate:"gte=0"`
	Mobile        float64 `json:"mobile" validate:"gte=0"`
	CardReference string  `json:"card_reference"`
}

type checkoutRequest struct {
	LocationID    string                   `json:"location_id" validate:"required"`
	ShiftID       string                   `json:"shift_id"`
	ClientRef     string                   `json:"client_ref" validate:"required,uuid4"`
	PaymentMethod string                   `json:"payment_method" validate:"required,oneof=CASH CARD MOBILE SPLIT"`
	CashReceived  float64                  `json:"cash_received" validate:"gte=0"`
	CardReference string                   `json:"card_reference"`
	Breakdown     *paymentBreakdownRequest `json:"payment_breakdown" validate:"omitempty"`
	Lines         []checkoutLineRequest    `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lines := make([]CheckoutLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, CheckoutLine{
			ItemID:    l.ItemID,
			ProductID: l.ProductID,
			Size:      BeverageSize(l.Size),
			AddOnIDs:  l.AddOnIDs,
			Quantity:  l.Quantity,
		})
	}
	input := CheckoutInput{
		LocationID:    req.LocationID,
		ShiftID:       req.ShiftID,
		Cashier:       shared.OperatorFromContext(r.Context()),
		ClientRef:     req.ClientRef,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		CashReceived:  req.CashReceived,
		CardReference: req.CardReference,
		Lines:         lines,
	}
	if req.Breakdown != nil {
		input.Breakdown = &PaymentBreakdown{
			Cash:          req.Breakdown.Cash,
			Card:          req.Breakdown.Card,
			Mobile:        req.Breakdown.Mobile,
			CardReference: req.Breakdown.CardReference,
		}
	}
	sale, err := h.service.Checkout(r.Context(), input)
	if err != nil {
		h.logger.Error("checkout", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"sale":    sale,
		"receipt": RenderReceipt(sale, false),
	})
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter := SaleFilter{
		LocationID: r.URL.Query().Get("location_id"),
		ShiftID:    r.URL.Query().Get("shift_id"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		filter.From, _ = time.Parse("2006-01-02", v)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		filter.To, _ = time.Parse("2006-01-02", v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	sales, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sales})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RenderReceipt(sale, false)))
}

type reprintRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

func (h *Handler) Reprint(w http.ResponseWriter, r *http.Request) {
	var req reprintRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	receipt, err := h.service.ReprintReceipt(r.Context(), chi.URLParam(r, "id"),
		shared.OperatorFromContext(r.Context()), req.Reason)
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(receipt))
}

func (h *Handler) ListReprints(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListReprints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

type openShiftRequest struct {
	LocationID   string  `json:"location_id" validate:"required"`
	OpeningFloat float64 `json:"opening_float" validate:"gte=0"`
}

func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	var req openShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	shift, err := h.service.OpenShift(r.Context(), OpenShiftInput{
		LocationID:   req.LocationID,
		Cashier:      shared.OperatorFromContext(r.Context()),
		OpeningFloat: req.OpeningFloat,
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, shift)
}

type closeShiftRequest struct {
	CountedCash float64 `json:"counted_cash" validate:"gte=0"`
}

func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req closeShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	shift, err := h.service.CloseShift(r.Context(), CloseShiftInput{
		ShiftID:     chi.URLParam(r, "id"),
		CountedCash: req.CountedCash,
		ClosedBy:    shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, shift)
}

type cashMovementRequest struct {
	Direction string  `json:"direction" validate:"required,oneof=IN OUT"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"required,min=3"`
}

func (h *Handler) RecordCashMovement(w http.ResponseWriter, r *http.Request) {
	var req cashMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	movement, err := h.service.RecordCashMovement(r.Context(), CashMovementInput{
		ShiftID:   chi.URLParam(r, "id"),
		Direction: MovementDirection(req.Direction),
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedBy: shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) ListCashMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListCashMovements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": movements})
}

type returnLineRequest struct {
	SaleLineID string `json:"sale_line_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

type submitReturnRequest struct {
	SaleID string              `json:"sale_id" validate:"required"`
	Reason string              `json:"reason" validate:"required,min=5"`
	Lines  []returnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	var req submitReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lines := make([]SubmitReturnLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, SubmitReturnLine{SaleLineID: l.SaleLineID, Quantity: l.Quantity})
	}
	ret, err := h.service.SubmitReturn(r.Context(), SubmitReturnInput{
		SaleID:      req.SaleID,
		Reason:      req.Reason,
		RequestedBy: shared.OperatorFromContext(r.Context()),
		Lines:       lines,
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	returns, err := h.service.ListReturns(r.Context(), ReturnStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": returns})
}

// ResolveReturn decides a pending return. Mounted separately so the
// router can restrict it to managers.
func (h *Handler) ResolveReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	ret, err := h.service.ResolveReturn(r.Context(), ResolveReturnInput{
		ReturnID:   chi.URLParam(r, "id"),
		Approve:    req.Approve,
		ResolvedBy: shared.OperatorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, mapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSaleNotFound), errors.Is(err, ErrReturnNotFound),
		errors.Is(err, ErrShiftNotFound), errors.Is(err, inventory.ErrItemNotFound):
		return httpx.ErrNotFound
	case errors.Is(err, ErrValidation):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrShiftClosed),
		errors.Is(err, shared.ErrIdempotencyConflict):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	default:
		return err
	}
}
