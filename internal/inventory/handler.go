package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vinstock/vinstock/internal/platform/httpx"
)

// Handler wires JSON endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/snapshot", h.handleSnapshot)
	r.Get("/movements", h.handleMovements)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/adjustments", h.handleAdjustment)
		r.Post("/receipts", h.handleReceipt)
	})
}

type adjustmentRequest struct {
	VariantID int64           `json:"variant_id" validate:"required,gt=0"`
	Warehouse string          `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Delta     int64           `json:"delta" validate:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reason    string          `json:"reason" validate:"max=500"`
}

type receiptRequest struct {
	VariantID int64           `json:"variant_id" validate:"required,gt=0"`
	Warehouse string          `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reason    string          `json:"reason" validate:"max=500"`
}

type movementResponse struct {
	ID             int64           `json:"id"`
	VariantID      int64           `json:"variant_id"`
	Warehouse      Warehouse       `json:"warehouse"`
	Kind           MovementKind    `json:"kind"`
	QuantityBefore int64           `json:"quantity_before"`
	QuantityChange int64           `json:"quantity_change"`
	QuantityAfter  int64           `json:"quantity_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	RefType        string          `json:"ref_type,omitempty"`
	RefID          string          `json:"ref_id,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	variantID, warehouse, ok := stockQuery(w, r)
	if !ok {
		return
	}
	snap, err := h.service.GetSnapshot(r.Context(), variantID, warehouse)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	variantID, warehouse, ok := stockQuery(w, r)
	if !ok {
		return
	}
	filter := MovementFilter{VariantID: variantID, Warehouse: warehouse}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			ID:             m.ID,
			VariantID:      m.VariantID,
			Warehouse:      m.Warehouse,
			Kind:           m.Kind,
			QuantityBefore: m.QuantityBefore,
			QuantityChange: m.QuantityChange,
			QuantityAfter:  m.QuantityAfter,
			UnitCost:       m.UnitCost,
			TotalCost:      m.TotalCost,
			RefType:        m.Ref.Type,
			RefID:          m.Ref.ID,
			Reason:         m.Reason,
			CreatedBy:      m.CreatedBy,
			CreatedAt:      m.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.Adjust(r.Context(), AdjustmentInput{
		VariantID: req.VariantID,
		Warehouse: Warehouse(req.Warehouse),
		Delta:     req.Delta,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		ActorID:   ActorID(r),
	})
	if err != nil {
		h.logger.Error("post adjustment failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.Receive(r.Context(), ReceiptInput{
		VariantID: req.VariantID,
		Warehouse: Warehouse(req.Warehouse),
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		ActorID:   ActorID(r),
	})
	if err != nil {
		h.logger.Error("post receipt failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, err, ErrorMappings()...)
}

// ErrorMappings translates the inventory error taxonomy for HTTP
// surfaces. Sibling modules reuse it for errors that bubble up from
// the stock helpers.
func ErrorMappings() []httpx.Mapping {
	return []httpx.Mapping{
		{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		{Err: ErrInsufficientStock, Status: http.StatusUnprocessableEntity, Title: "Insufficient Stock"},
		{Err: ErrInsufficientReservation, Status: http.StatusUnprocessableEntity, Title: "Insufficient Reservation"},
		{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
		{Err: ErrInvalidWarehouse, Status: http.StatusBadRequest, Title: "Validation Failed"},
		{Err: ErrConcurrencyConflict, Status: http.StatusConflict, Title: "Conflict"},
	}
}

// ActorID resolves the caller identity forwarded by the surrounding
// order/shipping workflows.
func ActorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func stockQuery(w http.ResponseWriter, r *http.Request) (int64, Warehouse, bool) {
	q := r.URL.Query()
	variantID, err := strconv.ParseInt(q.Get("variant_id"), 10, 64)
	if err != nil || variantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "variant_id required")
		return 0, "", false
	}
	warehouse := Warehouse(q.Get("warehouse"))
	if !warehouse.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse must be COMPANY or PRIVATE")
		return 0, "", false
	}
	return variantID, warehouse, true
}
