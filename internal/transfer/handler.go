package transfer

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

// Handler wires JSON endpoints for stock transfers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{transferID}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/", h.handleTransfer)
	})
}

type transferRequest struct {
	SourceVariantID int64  `json:"source_variant_id" validate:"required,gt=0"`
	SourceWarehouse string `json:"source_warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	TargetVariantID int64  `json:"target_variant_id" validate:"required,gt=0"`
	TargetWarehouse string `json:"target_warehouse" validate:"required,oneof=COMPANY PRIVATE"`
	Quantity        int64  `json:"quantity" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"max=500"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transferID")
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.service.Transfer(r.Context(), Input{
		SourceVariantID: req.SourceVariantID,
		SourceWarehouse: inventory.Warehouse(req.SourceWarehouse),
		TargetVariantID: req.TargetVariantID,
		TargetWarehouse: inventory.Warehouse(req.TargetWarehouse),
		Quantity:        req.Quantity,
		Reason:          req.Reason,
		ActorID:         inventory.ActorID(r),
	})
	if err != nil {
		h.logger.Error("transfer failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	mappings := append(inventory.ErrorMappings(),
		httpx.Mapping{Err: ErrInvalidTransfer, Status: http.StatusUnprocessableEntity, Title: "Invalid Transfer"},
	)
	httpx.RespondError(w, err, mappings...)
}
