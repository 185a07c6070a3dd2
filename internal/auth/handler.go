package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/shared"
)

// AccountResolver provisions or loads the account for a verified identity.
type AccountResolver interface {
	Resolve(ctx context.Context, id accounts.Identity) (accounts.Account, error)
}

// Landing picks where a freshly signed-in account should go.
type Landing interface {
	FirstPermitted(acct accounts.Account) (string, bool)
}

// Options configures the handler.
type Options struct {
	// ProviderURL is advertised on the login endpoint.
	ProviderURL string
	PendingPath string
}

// Handler wires HTTP endpoints for the sign-in flow.
type Handler struct {
	logger         *slog.Logger
	verifier       *TokenVerifier
	accounts       AccountResolver
	landing        Landing
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	opts           Options
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, verifier *TokenVerifier, accts AccountResolver, landing Landing, sessions *shared.SessionManager, csrf *shared.CSRFManager, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PendingPath == "" {
		opts.PendingPath = "/pending"
	}
	return &Handler{
		logger:         logger,
		verifier:       verifier,
		accounts:       accts,
		landing:        landing,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		opts:           opts,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/callback", h.handleCallback)
	r.Post("/logout", h.handleLogout)
}

type callbackRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type callbackResponse struct {
	Account   accounts.Account `json:"account"`
	Redirect  string           `json:"redirect"`
	CSRFToken string           `json:"csrfToken"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"provider":      h.opts.ProviderURL,
		"csrfToken":     token,
		"authenticated": sess.User() != "",
	})
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during callback")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}

	var req callbackRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: idToken required", shared.ErrValidation))
		return
	}

	claims, err := h.verifier.Verify(req.IDToken)
	if err != nil {
		h.logger.Warn("identity token rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.accounts.Resolve(r.Context(), claims.Identity())
	if err != nil {
		h.logger.Error("resolve account on sign-in", slog.String("email", claims.Email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sess.SetUser(acct.Email)
	sess.Delete(shared.CSRFSessionKey)
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	redirect := h.opts.PendingPath
	if path, ok := h.landing.FirstPermitted(acct); ok {
		redirect = path
	}
	h.logger.Info("signed in", slog.String("email", acct.Email), slog.String("role", string(acct.Role)), slog.Bool("approved", acct.IsActive()))
	httpx.JSON(w, http.StatusOK, callbackResponse{Account: acct, Redirect: redirect, CSRFToken: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
