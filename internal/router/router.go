package router

import (
	"net/http"
	"time"

	"servizephyr/internal/auth"
	"servizephyr/internal/handler"
	"servizephyr/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Orders *handler.OrderHandler
	Tabs   *handler.TabHandler
	Riders *handler.RiderHandler
}

// Options carries the middleware dependencies.
type Options struct {
	APIKey         string
	Verifier       *auth.Verifier
	Limiter        middleware.Limiter
	IPPerMinute    int
	RequestTimeout time.Duration // 0 disables
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> RealIP -> Logging -> CORS -> APIKeyAuth -> Identity
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RequestID, chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
	r.Use(middleware.Identity(opts.Verifier, logger))
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(middleware.RateLimitByIP(opts.Limiter, opts.IPPerMinute, logger))
		}

		r.Post("/orders", h.Orders.Create)
		r.Get("/orders/{id}", h.Orders.GetByID)

		r.Post("/tabs", h.Tabs.Create)
		r.Post("/tabs/cleanup", h.Tabs.Cleanup)
		r.Get("/tabs/{tabId}", h.Tabs.Status)
		r.Post("/tabs/{tabId}/pay", h.Tabs.Pay)
		r.Get("/tables", h.Tabs.ListTables)

		r.Route("/rider", func(r chi.Router) {
			r.Post("/reached-restaurant", h.Riders.ReachedRestaurant)
			r.Post("/picked-up", h.Riders.PickUp)
			r.Post("/start-delivery", h.Riders.StartDelivery)
			r.Post("/deliver", h.Riders.Deliver)
			r.Post("/attempt-delivery", h.Riders.AttemptDelivery)
			r.Post("/mark-failed", h.Riders.MarkFailed)
			r.Post("/return-order", h.Riders.ReturnOrder)
			r.Post("/update-status", h.Riders.UpdateStatus)
		})
	})

	return r
}
