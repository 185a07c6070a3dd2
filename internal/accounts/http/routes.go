package accountshttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/shared"
)

// MountRoutes registers the API on r. Every route resolves the caller first.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	if h == nil {
		return
	}
	usersPath := catalog.RootPath + "/" + string(catalog.Users)
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)

	r.Route("/api", func(api chi.Router) {
		api.Use(mw.RequireAuthenticated)
		api.Get("/me", h.handleMe)
		api.Get("/me/permissions", h.handlePermissions)
		api.Get("/catalog", h.handleCatalog)

		api.With(mw.RequireAction(usersPath, catalog.ActionView)).Get("/accounts", h.handleList)
		api.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.With(mw.RequireAction(usersPath, catalog.ActionAdd)).Post("/accounts", h.handleCreate)
			gr.With(mw.RequireAction(usersPath, catalog.ActionEdit)).Patch("/accounts/{email}", h.handleUpdate)
			gr.With(mw.RequireAction(usersPath, catalog.ActionEdit), mw.RequireSuperAdmin).
				Post("/accounts/{email}/promote", h.handlePromote)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := strings.TrimSpace(shared.CurrentEmail(r.Context())); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
