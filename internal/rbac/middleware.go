package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/shared"
)

// Middleware wires authorization gates for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAuthenticated resolves the session identity and stores the account
// in the request context. Unapproved accounts pass; gates below decide.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := m.Resolver.Account(r.Context(), shared.CurrentEmail(r.Context()))
		if err != nil {
			m.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acct)))
	})
}

// RequireAction allows the request only when the caller may perform action
// on resourcePath.
func (m Middleware) RequireAction(resourcePath string, action catalog.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := AccountFromContext(r.Context())
			if !ok {
				var err error
				acct, err = m.Resolver.Account(r.Context(), shared.CurrentEmail(r.Context()))
				if err != nil {
					m.fail(w, r, err)
					return
				}
			}
			if !acct.IsActive() {
				httpx.RespondError(w, shared.ErrUnapproved)
				return
			}
			if !m.Resolver.Decide(acct, resourcePath, action) {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acct)))
		})
	}
}

// RequireSuperAdmin restricts a route to approved superadmins.
func (m Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFromContext(r.Context())
		if !ok {
			var err error
			acct, err = m.Resolver.Account(r.Context(), shared.CurrentEmail(r.Context()))
			if err != nil {
				m.fail(w, r, err)
				return
			}
		}
		if !acct.IsActive() || !acct.IsSuperAdmin() {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acct)))
	})
}

// RequirePage gates a browser page: callers without view access are
// redirected instead of receiving an error body.
func (m Middleware) RequirePage(resourcePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, redirect, err := m.Resolver.RequireView(r.Context(), shared.CurrentEmail(r.Context()), resourcePath)
			if err != nil {
				m.fail(w, r, err)
				return
			}
			if redirect != nil {
				http.Redirect(w, r, redirect.Location, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acct)))
		})
	}
}

func (m Middleware) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
		m.Logger.Error("rbac resolve account", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
