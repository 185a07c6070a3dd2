package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

// Notifier delivers account lifecycle notifications. Failures never roll back
// the change that triggered them.
type Notifier interface {
	AccountApproved(ctx context.Context, account Account) error
}

// AuditRecorder persists administrative changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceDeps groups optional collaborators of Service.
type ServiceDeps struct {
	Notifier Notifier
	Audit    AuditRecorder
	Logger   *slog.Logger
}

// resolveTimeout bounds one deduplicated account lookup.
const resolveTimeout = 10 * time.Second

// Service wraps account provisioning and administration rules.
type Service struct {
	store    Store
	catalog  *catalog.Catalog
	notifier Notifier
	audit    AuditRecorder
	logger   *slog.Logger
	group    singleflight.Group
	newID    func() string
}

// NewService constructs a Service.
func NewService(store Store, cat *catalog.Catalog, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		catalog:  cat,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Catalog exposes the resource catalog the service validates against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Resolve returns the account for a verified identity, provisioning it on
// first contact and syncing display fields when they drift.
func (s *Service) Resolve(ctx context.Context, id Identity) (Account, error) {
	email := NormalizeEmail(id.Email)
	if email == "" {
		return Account{}, shared.ErrUnauthenticated
	}
	// The shared lookup outlives any single caller; each caller still stops
	// waiting when its own context ends.
	results := s.group.DoChan(email, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return s.resolve(flightCtx, email, id)
	})
	select {
	case <-ctx.Done():
		return Account{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return Account{}, res.Err
		}
		acct := res.Val.(Account)
		acct.Grants = acct.Grants.Clone()
		return acct, nil
	}
}

func (s *Service) resolve(ctx context.Context, email string, id Identity) (Account, error) {
	acct, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.syncProfile(ctx, acct, id)
	case errors.Is(err, shared.ErrNotFound):
		return s.provision(ctx, email, id)
	default:
		return Account{}, fmt.Errorf("accounts: resolve %s: %w", email, err)
	}
}

func (s *Service) provision(ctx context.Context, email string, id Identity) (Account, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: provision %s: %w", email, err)
	}
	var bootstrap bool
	if n == 0 {
		bootstrap, err = s.store.ClaimBootstrap(ctx, email)
	} else {
		// The claimant's own insert may have failed after the claim while
		// other accounts were provisioned; it still owns the superadmin slot.
		var owner string
		owner, err = s.store.BootstrapOwner(ctx)
		bootstrap = owner == email
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: provision %s: %w", email, err)
	}

	acct := Account{ID: s.newID(), Email: email, Role: RoleUser, Grants: Grants{}}
	if bootstrap {
		acct = bootstrapAccount(acct.ID, email, s.catalog)
	}
	acct.DisplayName = id.DisplayName
	acct.AvatarURL = id.AvatarURL

	if _, err := s.store.Insert(ctx, acct); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			// Lost a provisioning race for the same email; use the stored row.
			return s.store.FindByEmail(ctx, email)
		}
		return Account{}, fmt.Errorf("accounts: provision %s: %w", email, err)
	}
	stored, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: provision %s: %w", email, err)
	}
	s.logger.Info("account provisioned",
		slog.String("email", email),
		slog.String("role", string(stored.Role)),
		slog.Bool("bootstrap", bootstrap))
	return stored, nil
}

func (s *Service) syncProfile(ctx context.Context, acct Account, id Identity) (Account, error) {
	var patch Patch
	if id.DisplayName != "" && id.DisplayName != acct.DisplayName {
		patch.DisplayName = &id.DisplayName
	}
	if id.AvatarURL != "" && id.AvatarURL != acct.AvatarURL {
		patch.AvatarURL = &id.AvatarURL
	}
	if patch.Empty() {
		return acct, nil
	}
	if _, err := s.store.UpdateByEmail(ctx, acct.Email, patch); err != nil {
		return Account{}, fmt.Errorf("accounts: sync profile %s: %w", acct.Email, err)
	}
	return patch.Apply(acct), nil
}

// CreateInput describes an account provisioned by an administrator.
type CreateInput struct {
	Email       string
	DisplayName string
	Phone       string
	Role        Role
	Approved    bool
	Grants      Grants
}

// Create provisions an account ahead of its first sign-in.
func (s *Service) Create(ctx context.Context, actor Account, in CreateInput) (Account, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return Account{}, fmt.Errorf("%w: email required", shared.ErrValidation)
	}
	if !in.Role.Valid() {
		return Account{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, in.Role)
	}
	if in.Role == RoleSuperAdmin {
		return Account{}, fmt.Errorf("%w: superadmin is granted through promotion only", shared.ErrValidation)
	}
	if err := in.Grants.Validate(s.catalog); err != nil {
		return Account{}, err
	}
	acct := Account{
		ID:          s.newID(),
		Email:       email,
		DisplayName: in.DisplayName,
		Phone:       in.Phone,
		Role:        in.Role,
		Approved:    in.Approved,
		Grants:      in.Grants.Normalize(),
	}
	if err := checkAdminGrants(acct); err != nil {
		return Account{}, err
	}
	if _, err := s.store.Insert(ctx, acct); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return Account{}, fmt.Errorf("accounts: %s: %w", email, shared.ErrDuplicate)
		}
		return Account{}, fmt.Errorf("accounts: create %s: %w", email, err)
	}
	s.record(ctx, actor, "account.create", email, map[string]any{"role": acct.Role, "approved": acct.Approved})
	return s.store.FindByEmail(ctx, email)
}

// UpdateResult carries the edited account and any non-fatal warning.
type UpdateResult struct {
	Account Account
	Warning string
}

// Update applies an administrative edit. The edit is last-write-wins.
func (s *Service) Update(ctx context.Context, actor Account, email string, patch Patch) (UpdateResult, error) {
	email = NormalizeEmail(email)
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return UpdateResult{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, *patch.Role)
		}
		if *patch.Role == RoleSuperAdmin {
			return UpdateResult{}, fmt.Errorf("%w: superadmin is granted through promotion only", shared.ErrValidation)
		}
	}
	if patch.Grants != nil {
		if err := patch.Grants.Validate(s.catalog); err != nil {
			return UpdateResult{}, err
		}
		normalized := patch.Grants.Normalize()
		patch.Grants = &normalized
	}

	current, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return UpdateResult{}, fmt.Errorf("accounts: %s: %w", email, shared.ErrNotFound)
		}
		return UpdateResult{}, fmt.Errorf("accounts: update %s: %w", email, err)
	}
	if current.IsSuperAdmin() && !actor.IsSuperAdmin() {
		return UpdateResult{}, fmt.Errorf("accounts: only a superadmin may edit %s: %w", email, shared.ErrForbidden)
	}
	next := patch.Apply(current)
	if err := checkAdminGrants(next); err != nil {
		return UpdateResult{}, err
	}
	if patch.Empty() {
		return UpdateResult{Account: current}, nil
	}

	matched, err := s.store.UpdateByEmail(ctx, email, patch)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("accounts: update %s: %w", email, err)
	}
	if matched == 0 {
		return UpdateResult{}, fmt.Errorf("accounts: %s: %w", email, shared.ErrNotFound)
	}
	s.record(ctx, actor, "account.update", email, patchMeta(patch))

	result := UpdateResult{Account: next}
	if !current.IsActive() && next.IsActive() && s.notifier != nil {
		if err := s.notifier.AccountApproved(ctx, next); err != nil {
			s.logger.Warn("account approved notification", slog.String("email", email), slog.Any("error", err))
			result.Warning = "account updated but the approval notification could not be queued"
		}
	}
	return result, nil
}

// Promote forces an account to superadmin with full grants.
func (s *Service) Promote(ctx context.Context, actor Account, email string) (Account, error) {
	email = NormalizeEmail(email)
	role := RoleSuperAdmin
	approved := true
	grants := FullGrants(s.catalog)
	matched, err := s.store.UpdateByEmail(ctx, email, Patch{Role: &role, Approved: &approved, Grants: &grants})
	if err != nil {
		return Account{}, fmt.Errorf("accounts: promote %s: %w", email, err)
	}
	if matched == 0 {
		return Account{}, fmt.Errorf("accounts: %s: %w", email, shared.ErrNotFound)
	}
	s.record(ctx, actor, "account.promote", email, nil)
	s.logger.Info("account promoted", slog.String("email", email), slog.String("actor", actor.Email))
	return s.store.FindByEmail(ctx, email)
}

// List returns every account ordered by email.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	return accts, nil
}

func (s *Service) record(ctx context.Context, actor Account, action, email string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{ActorEmail: actor.Email, Action: action, Entity: "account", EntityID: email, Meta: meta}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func patchMeta(p Patch) map[string]any {
	meta := make(map[string]any)
	if p.Role != nil {
		meta["role"] = *p.Role
	}
	if p.Approved != nil {
		meta["approved"] = *p.Approved
	}
	if p.Grants != nil {
		meta["permissionGrants"] = *p.Grants
	}
	if p.DisplayName != nil {
		meta["displayName"] = *p.DisplayName
	}
	if p.Phone != nil {
		meta["phone"] = *p.Phone
	}
	return meta
}
