package receiving

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/httpx"
)

// Handler wires JSON endpoints for goods receipts.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs receiving handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/receipts", h.handlePost)
	})
}

type receiptRequest struct {
	VariantID int64  `json:"variant_id" validate:"required,gt=0"`
	Warehouse string `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	UnitCost  string `json:"unit_cost" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil || unitCost.IsNegative() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_cost must be a non-negative decimal")
		return
	}

	snap, err := h.service.Post(r.Context(), Input{
		VariantID: req.VariantID,
		Warehouse: inventory.Warehouse(req.Warehouse),
		Quantity:  req.Quantity,
		UnitCost:  unitCost,
		Reason:    req.Reason,
		ActorID:   inventory.ActorID(r),
	})
	if err != nil {
		h.logger.Error("receipt failed", slog.Any("error", err))
		httpx.RespondError(w, err, inventory.ErrorMappings()...)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}
