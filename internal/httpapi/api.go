// Package httpapi implements the REST API of xeno-crm: customer and order
// ingestion, campaign segmentation and dispatch, delivery logs and message
// copy suggestions.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/suggest"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// defaultMaxBodyBytes applies when Dependencies.MaxBodyBytes is zero.
const defaultMaxBodyBytes = 4 << 20

// Dependencies wires the API. Every field except Queue and StatsGuard is
// required; without a queue, bulk imports recompute stats inline.
type Dependencies struct {
	Logger    *slog.Logger
	Store     store.Store
	Campaigns *campaign.Service
	Suggest   *suggest.Service
	Stats     *stats.Aggregator
	Queue     cache.StatsQueue
	Verifier  *auth.Verifier

	// StatsGuard serializes the per-order recompute with the stats worker.
	StatsGuard *stats.Guard

	// RecomputeConcurrency bounds inline recomputes after a bulk import.
	RecomputeConcurrency int
	MaxBodyBytes         int64
}

// API holds the router and the services behind it.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	log       *slog.Logger
	store     store.Store
	campaigns *campaign.Service
	suggest   *suggest.Service
	stats     *stats.Aggregator
	guard     *stats.Guard
	queue     cache.StatsQueue
	verifier  *auth.Verifier

	recomputeConcurrency int
	maxBodyBytes         int64
}

// NewAPI builds the API. It panics when a required dependency is missing.
func NewAPI(deps Dependencies) *API {
	validation.AssertNotNilInterface(deps.Store, "store")
	validation.AssertNotNil(deps.Campaigns, "campaign service")
	validation.AssertNotNil(deps.Suggest, "suggest service")
	validation.AssertNotNil(deps.Stats, "stats aggregator")
	validation.AssertNotNil(deps.Verifier, "token verifier")

	a := &API{
		Router:               chi.NewRouter(),
		log:                  deps.Logger,
		store:                deps.Store,
		campaigns:            deps.Campaigns,
		suggest:              deps.Suggest,
		stats:                deps.Stats,
		guard:                deps.StatsGuard,
		queue:                deps.Queue,
		verifier:             deps.Verifier,
		recomputeConcurrency: max(deps.RecomputeConcurrency, 1),
		maxBodyBytes:         deps.MaxBodyBytes,
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = defaultMaxBodyBytes
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// 1. Global middleware
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(Instrument)
	a.Router.Use(RequestLogger(a.log))
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.RequestSize(a.maxBodyBytes))
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	// 2. Public routes
	a.Router.Get("/health", a.handleHealthCheck)

	// 3. Operator routes
	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(a.verifier))

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", a.handleCreateCustomer)
			r.Get("/", a.handleListCustomers)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", a.handleCreateOrder)
			r.Get("/", a.handleListOrders)
			r.Post("/bulk", a.handleBulkOrders)
			r.Get("/customer/{customerID}", a.handleListCustomerOrders)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", a.handleCreateCampaign)
			r.Get("/", a.handleListCampaigns)
			r.Post("/preview", a.handlePreview)
		})

		r.Get("/logs/{campaignID}", a.handleCampaignLogs)

		r.Route("/ai", func(r chi.Router) {
			r.Post("/generate-message", a.handleGenerateMessage)
			r.Post("/get-suggestions", a.handleSuggestions)
		})
	})
}

// handleHealthCheck reports that the process is serving HTTP. Dependency
// checks live on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
