package fulfillment

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/httpx"
)

// Handler wires JSON endpoints for reservations and shipments.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs fulfillment handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers fulfillment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reservations/{lineItemID}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/reservations", h.handleReserve)
		r.Post("/shipments", h.handleShip)
		r.Post("/cancellations", h.handleCancel)
	})
}

type reserveRequest struct {
	LineItemID int64  `json:"line_item_id" validate:"required,gt=0"`
	VariantID  int64  `json:"variant_id" validate:"required,gt=0"`
	Warehouse  string `json:"warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
}

type shipRequest struct {
	LineItemID int64  `json:"line_item_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"max=500"`
}

type cancelRequest struct {
	LineItemID int64 `json:"line_item_id" validate:"required,gt=0"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	lineItemID, err := strconv.ParseInt(chi.URLParam(r, "lineItemID"), 10, 64)
	if err != nil || lineItemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line item id")
		return
	}
	res, err := h.service.GetReservation(r.Context(), lineItemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.Reserve(r.Context(), ReserveInput{
		LineItemID: req.LineItemID,
		VariantID:  req.VariantID,
		Warehouse:  inventory.Warehouse(req.Warehouse),
		Quantity:   req.Quantity,
		ActorID:    inventory.ActorID(r),
	})
	if err != nil {
		h.logger.Error("reserve failed", slog.Any("error", err), slog.Int64("line_item_id", req.LineItemID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, movements, err := h.service.Ship(r.Context(), ShipInput{
		LineItemID: req.LineItemID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		ActorID:    inventory.ActorID(r),
	})
	if err != nil {
		h.logger.Error("ship failed", slog.Any("error", err), slog.Int64("line_item_id", req.LineItemID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reservation": res,
		"lots_shipped": len(movements),
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.Cancel(r.Context(), req.LineItemID, inventory.ActorID(r))
	if err != nil {
		h.logger.Error("cancel failed", slog.Any("error", err), slog.Int64("line_item_id", req.LineItemID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	mappings := append(inventory.ErrorMappings(),
		httpx.Mapping{Err: ErrReservationNotFound, Status: http.StatusNotFound, Title: "Not Found"},
		httpx.Mapping{Err: ErrInvalidState, Status: http.StatusUnprocessableEntity, Title: "Invalid State"},
		httpx.Mapping{Err: ErrVariantMismatch, Status: http.StatusUnprocessableEntity, Title: "Invalid State"},
	)
	httpx.RespondError(w, err, mappings...)
}
