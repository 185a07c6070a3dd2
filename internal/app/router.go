package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountshttp "github.com/linkwave/portal/internal/accounts/http"
	"github.com/linkwave/portal/internal/auth"
	"github.com/linkwave/portal/internal/observability"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/sections"
	"github.com/linkwave/portal/internal/shared"
	"github.com/linkwave/portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	RBACMiddleware  rbac.Middleware
	AuthHandler     *auth.Handler
	AccountsHandler *accountshttp.Handler
	SectionsHandler *sections.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Health and metrics endpoints stay outside sessions and rate limits.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}

		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.AccountsHandler.MountRoutes(r, params.RBACMiddleware)
		params.SectionsHandler.MountRoutes(r, params.RBACMiddleware)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	return r
}
