// Package sections serves the portal landing, pending and dashboard pages.
package sections

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/shared"
)

// Handler renders section summaries gated by view permission.
type Handler struct {
	logger   *slog.Logger
	resolver *rbac.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, resolver *rbac.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver}
}

type sectionView struct {
	Resource       catalog.Resource `json:"resource"`
	AllowedActions []catalog.Action `json:"allowedActions"`
	Account        accounts.Account `json:"account"`
}

type pendingView struct {
	Email    string `json:"email"`
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

// MountRoutes registers "/", the pending page and one route per catalog
// resource.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Get("/", h.handleLanding)
	cfg := h.resolver.Config()
	r.Get(cfg.PendingPath, h.handlePending)
	if cfg.ForbiddenPath != cfg.PendingPath {
		r.Get(cfg.ForbiddenPath, h.handlePending)
	}
	for _, res := range h.resolver.Catalog().Resources() {
		page := h.section(res)
		gate := mw.RequirePage(res.Path)
		r.With(gate).Get(res.Path, page)
		r.With(gate).Get(res.Path+"/", page)
	}
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	cfg := h.resolver.Config()
	email := shared.CurrentEmail(r.Context())
	if email == "" {
		http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
		return
	}
	path, ok, err := h.resolver.FirstPermittedPath(r.Context(), email)
	if err != nil {
		h.logger.Error("landing resolve", slog.String("email", email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		path = cfg.PendingPath
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	acct, err := h.resolver.Account(r.Context(), shared.CurrentEmail(r.Context()))
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			http.Redirect(w, r, h.resolver.Config().LoginPath, http.StatusSeeOther)
			return
		}
		h.logger.Error("pending resolve", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	msg := "Your account is waiting for an administrator to approve it."
	if acct.IsActive() {
		msg = "Your account does not have access to that section. Ask an administrator for permission."
	}
	httpx.JSON(w, http.StatusOK, pendingView{Email: acct.Email, Approved: acct.IsActive(), Message: msg})
}

func (h *Handler) section(res catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := rbac.AccountFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		allowed := make([]catalog.Action, 0, 4)
		for _, action := range catalog.AllActions() {
			if h.resolver.Decide(acct, res.Path, action) {
				allowed = append(allowed, action)
			}
		}
		httpx.JSON(w, http.StatusOK, sectionView{Resource: res, AllowedActions: allowed, Account: acct})
	}
}
