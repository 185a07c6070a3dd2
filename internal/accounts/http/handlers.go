// Package accountshttp exposes the account and permission API.
package accountshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/platform/httpx"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/shared"
)

// AccountService is the administrative surface used by the handler.
type AccountService interface {
	Create(ctx context.Context, actor accounts.Account, in accounts.CreateInput) (accounts.Account, error)
	Update(ctx context.Context, actor accounts.Account, email string, patch accounts.Patch) (accounts.UpdateResult, error)
	Promote(ctx context.Context, actor accounts.Account, email string) (accounts.Account, error)
	List(ctx context.Context) ([]accounts.Account, error)
}

// PermissionView derives the permission summary of a resolved account.
type PermissionView interface {
	Effective(acct accounts.Account) map[catalog.ResourceID][]catalog.Action
	FirstPermitted(acct accounts.Account) (string, bool)
	Catalog() *catalog.Catalog
}

// Handler serves /api/me, /api/catalog and /api/accounts.
type Handler struct {
	logger      *slog.Logger
	service     AccountService
	permissions PermissionView
	validator   *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service AccountService, permissions PermissionView) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		permissions: permissions,
		validator:   validator.New(),
	}
}

type createRequest struct {
	Email       string          `json:"email" validate:"required,email"`
	DisplayName string          `json:"displayName" validate:"max=120"`
	Phone       string          `json:"phone" validate:"omitempty,e164"`
	Role        string          `json:"role" validate:"required"`
	Approved    bool            `json:"approved"`
	Grants      accounts.Grants `json:"permissionGrants"`
}

type updateRequest struct {
	DisplayName *string          `json:"displayName" validate:"omitempty,max=120"`
	Phone       *string          `json:"phone" validate:"omitempty,max=32"`
	Role        *string          `json:"role"`
	Approved    *bool            `json:"approved"`
	Grants      *accounts.Grants `json:"permissionGrants"`
}

type updateResponse struct {
	Account accounts.Account `json:"account"`
	Warning string           `json:"warning,omitempty"`
}

type permissionsResponse struct {
	Email       string                                  `json:"email"`
	Role        accounts.Role                           `json:"role"`
	Approved    bool                                    `json:"approved"`
	Permissions map[catalog.ResourceID][]catalog.Action `json:"permissions"`
	Landing     string                                  `json:"landing,omitempty"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := rbac.AccountFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	acct, ok := rbac.AccountFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	landing, _ := h.permissions.FirstPermitted(acct)
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Email:       acct.Email,
		Role:        acct.Role,
		Approved:    acct.IsActive(),
		Permissions: h.permissions.Effective(acct),
		Landing:     landing,
	})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.permissions.Catalog().Resources())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := accounts.ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.AccountFromContext(r.Context())
	acct, err := h.service.Create(r.Context(), actor, accounts.CreateInput{
		Email:       req.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Phone:       req.Phone,
		Role:        role,
		Approved:    req.Approved,
		Grants:      req.Grants,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := accounts.Patch{
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Approved:    req.Approved,
		Grants:      req.Grants,
	}
	if req.Role != nil {
		role, err := accounts.ParseRole(*req.Role)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		patch.Role = &role
	}
	actor, _ := rbac.AccountFromContext(r.Context())
	result, err := h.service.Update(r.Context(), actor, email, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updateResponse{Account: result.Account, Warning: result.Warning})
}

func (h *Handler) handlePromote(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.AccountFromContext(r.Context())
	acct, err := h.service.Promote(r.Context(), actor, email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) validate(v any) error {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(msgs, "; "))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !isClientError(err) {
		h.logger.Error("accounts api", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	for _, target := range []error{shared.ErrValidation, shared.ErrNotFound, shared.ErrDuplicate, shared.ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func emailParam(r *http.Request) (string, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: account email required", shared.ErrValidation)
	}
	return raw, nil
}
