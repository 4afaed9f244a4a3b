package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/receiving"
	"github.com/vinstock/vinstock/internal/transfer"
	"github.com/vinstock/vinstock/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	InventoryHandler   *inventory.Handler
	FulfillmentHandler *fulfillment.Handler
	TransferHandler    *transfer.Handler
	AllocationHandler  *allocation.Handler
	BackorderHandler   *backorder.Handler
	ReceivingHandler   *receiving.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with default middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.InventoryHandler != nil {
		r.Route("/inventory", func(r chi.Router) {
			params.InventoryHandler.MountRoutes(r)
		})
	}
	if params.FulfillmentHandler != nil {
		r.Route("/fulfillment", func(r chi.Router) {
			params.FulfillmentHandler.MountRoutes(r)
		})
	}
	if params.TransferHandler != nil {
		r.Route("/transfers", func(r chi.Router) {
			params.TransferHandler.MountRoutes(r)
		})
	}
	if params.AllocationHandler != nil {
		r.Route("/allocation", func(r chi.Router) {
			params.AllocationHandler.MountRoutes(r)
		})
	}
	if params.BackorderHandler != nil {
		r.Route("/backorders", func(r chi.Router) {
			params.BackorderHandler.MountRoutes(r)
		})
	}
	if params.ReceivingHandler != nil {
		r.Route("/receiving", func(r chi.Router) {
			params.ReceivingHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
