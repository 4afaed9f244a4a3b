package allocation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/httpx"
)

// Handler wires JSON endpoints for allocation planning and execution.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs allocation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/plan", h.handlePlan)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(20, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/execute", h.handleExecute)
	})
}

type demandItemRequest struct {
	LineItemID   int64     `json:"line_item_id" validate:"required,gt=0"`
	RequestedQty int64     `json:"requested_qty" validate:"required,gt=0"`
	Priority     int       `json:"priority" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" validate:"required"`
}

type planRequest struct {
	VariantID int64               `json:"variant_id" validate:"required,gt=0"`
	Warehouse string              `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Strategy  string              `json:"strategy" validate:"required,oneof=PROPORTIONAL PRIORITY FCFS"`
	Items     []demandItemRequest `json:"items" validate:"required,min=1,dive"`
}

type executeItemRequest struct {
	demandItemRequest
	AllocatedQty int64 `json:"allocated_qty" validate:"gte=0"`
}

type executeRequest struct {
	VariantID      int64                `json:"variant_id" validate:"required,gt=0"`
	Warehouse      string               `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Strategy       string               `json:"strategy" validate:"required,oneof=PROPORTIONAL PRIORITY FCFS"`
	AvailableStock int64                `json:"available_stock" validate:"gte=0"`
	Items          []executeItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]DemandItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = DemandItem{
			LineItemID:   item.LineItemID,
			RequestedQty: item.RequestedQty,
			Priority:     item.Priority,
			CreatedAt:    item.CreatedAt,
		}
	}
	plan, err := h.service.Plan(r.Context(), req.VariantID, inventory.Warehouse(req.Warehouse), Strategy(req.Strategy), items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

// handleExecute accepts a plan document, normally the /plan response
// with any manual overrides folded in. Allocations are re-clamped and
// the stats recomputed server-side before committing.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	plan := Plan{
		VariantID:      req.VariantID,
		Warehouse:      inventory.Warehouse(req.Warehouse),
		Strategy:       Strategy(req.Strategy),
		AvailableStock: req.AvailableStock,
		Items:          make([]ItemAllocation, len(req.Items)),
	}
	for i, item := range req.Items {
		allocated := item.AllocatedQty
		if allocated > item.RequestedQty {
			allocated = item.RequestedQty
		}
		plan.Items[i] = itemOutcome(DemandItem{
			LineItemID:   item.LineItemID,
			RequestedQty: item.RequestedQty,
			Priority:     item.Priority,
			CreatedAt:    item.CreatedAt,
		}, allocated)
	}
	plan.Stats = computeStats(plan.Items)

	result, err := h.service.Execute(r.Context(), plan, inventory.ActorID(r))
	if err != nil {
		h.logger.Error("allocation execute failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	mappings := append(inventory.ErrorMappings(),
		httpx.Mapping{Err: ErrUnknownStrategy, Status: http.StatusBadRequest, Title: "Unknown Strategy"},
		httpx.Mapping{Err: ErrInvalidDemand, Status: http.StatusBadRequest, Title: "Invalid Demand"},
	)
	httpx.RespondError(w, err, mappings...)
}
