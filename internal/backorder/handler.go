package backorder

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/httpx"
)

// Handler wires JSON endpoints for backorders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs backorder handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers backorder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{backorderID}", h.handleGet)
	r.Post("/{backorderID}/cancel", h.handleCancel)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("variant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "variant_id must be a positive integer")
			return
		}
		filter.VariantID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	records, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"backorders": records})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "backorderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid backorder id")
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "backorderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid backorder id")
		return
	}
	record, err := h.service.Cancel(r.Context(), id, inventory.ActorID(r))
	if err != nil {
		h.logger.Error("backorder cancel failed", slog.Int64("backorder_id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	mappings := append(inventory.ErrorMappings(),
		httpx.Mapping{Err: ErrBackorderNotFound, Status: http.StatusNotFound, Title: "Backorder Not Found"},
		httpx.Mapping{Err: ErrInvalidState, Status: http.StatusConflict, Title: "Invalid Backorder State"},
	)
	httpx.RespondError(w, err, mappings...)
}
