// Package rbac decides whether an account may perform an action on a portal
// resource and turns those decisions into HTTP gates.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

// UnknownResourcePolicy decides requests for paths missing from the catalog.
type UnknownResourcePolicy string

// Supported policies.
const (
	UnknownAllow UnknownResourcePolicy = "allow"
	UnknownDeny  UnknownResourcePolicy = "deny"
)

// Default redirect targets.
const (
	DefaultLoginPath   = "/auth/login"
	DefaultPendingPath = "/pending"
)

// Config tunes resolver policy.
type Config struct {
	UnknownResource UnknownResourcePolicy
	LoginPath       string
	PendingPath     string
	// ForbiddenPath is where approved accounts lacking view permission are
	// sent. Empty means PendingPath.
	ForbiddenPath string
}

func (c Config) withDefaults() Config {
	if c.UnknownResource == "" {
		c.UnknownResource = UnknownAllow
	}
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.PendingPath == "" {
		c.PendingPath = DefaultPendingPath
	}
	if c.ForbiddenPath == "" {
		c.ForbiddenPath = c.PendingPath
	}
	return c
}

// AccountResolver provisions or loads the account behind an identity.
type AccountResolver interface {
	Resolve(ctx context.Context, id accounts.Identity) (accounts.Account, error)
}

// DecisionObserver receives every authorization decision.
type DecisionObserver interface {
	ObserveDecision(resource, action string, allowed bool)
}

// Resolver answers authorization questions for identities.
type Resolver struct {
	accounts AccountResolver
	catalog  *catalog.Catalog
	cfg      Config
	observer DecisionObserver
}

// NewResolver constructs a Resolver. observer may be nil.
func NewResolver(accts AccountResolver, cat *catalog.Catalog, cfg Config, observer DecisionObserver) *Resolver {
	return &Resolver{accounts: accts, catalog: cat, cfg: cfg.withDefaults(), observer: observer}
}

// Catalog returns the resource catalog used for path matching.
func (r *Resolver) Catalog() *catalog.Catalog {
	return r.catalog
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Account resolves the account for email. Any store failure is returned and
// must be treated as a denial.
func (r *Resolver) Account(ctx context.Context, email string) (accounts.Account, error) {
	if accounts.NormalizeEmail(email) == "" {
		return accounts.Account{}, shared.ErrUnauthenticated
	}
	return r.accounts.Resolve(ctx, accounts.Identity{Email: email})
}

// Authorize reports whether email may perform action on resourcePath.
func (r *Resolver) Authorize(ctx context.Context, email, resourcePath string, action catalog.Action) (bool, error) {
	if !action.Valid() {
		return false, fmt.Errorf("%w: unknown action %q", shared.ErrValidation, action)
	}
	acct, err := r.Account(ctx, email)
	if err != nil {
		return false, err
	}
	return r.Decide(acct, resourcePath, action), nil
}

// Decide evaluates an already resolved account.
func (r *Resolver) Decide(acct accounts.Account, resourcePath string, action catalog.Action) bool {
	res, known := r.catalog.Match(resourcePath)
	label := string(res.ID)
	if !known {
		label = "unknown"
	}
	allowed := r.decide(acct, res, known, action)
	if r.observer != nil {
		r.observer.ObserveDecision(label, string(action), allowed)
	}
	return allowed
}

func (r *Resolver) decide(acct accounts.Account, res catalog.Resource, known bool, action catalog.Action) bool {
	if !action.Valid() || !acct.IsActive() {
		return false
	}
	if acct.IsSuperAdmin() {
		return true
	}
	if !known {
		return r.cfg.UnknownResource == UnknownAllow
	}
	grant, ok := acct.Grants.Lookup(res.ID)
	return ok && grant.Allows(action)
}

// Reason explains a redirect.
type Reason string

// Redirect reasons.
const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonUnapproved      Reason = "unapproved"
	ReasonForbidden       Reason = "forbidden"
)

// Redirect tells a page handler where to send the browser instead.
type Redirect struct {
	Location string
	Reason   Reason
}

// RequireView gates a page: it returns the account when it may view
// resourcePath, or a redirect describing why not.
func (r *Resolver) RequireView(ctx context.Context, email, resourcePath string) (accounts.Account, *Redirect, error) {
	acct, err := r.Account(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			return accounts.Account{}, &Redirect{Location: r.cfg.LoginPath, Reason: ReasonUnauthenticated}, nil
		}
		return accounts.Account{}, nil, err
	}
	if !acct.IsActive() {
		return acct, &Redirect{Location: r.cfg.PendingPath, Reason: ReasonUnapproved}, nil
	}
	if !r.Decide(acct, resourcePath, catalog.ActionView) {
		return acct, &Redirect{Location: r.cfg.ForbiddenPath, Reason: ReasonForbidden}, nil
	}
	return acct, nil, nil
}

// FirstPermittedPath returns the first page email may view.
func (r *Resolver) FirstPermittedPath(ctx context.Context, email string) (string, bool, error) {
	acct, err := r.Account(ctx, email)
	if err != nil {
		return "", false, err
	}
	path, ok := r.FirstPermitted(acct)
	return path, ok, nil
}

// FirstPermitted walks grants in stored order and returns the path of the
// first resource with view access.
func (r *Resolver) FirstPermitted(acct accounts.Account) (string, bool) {
	if !acct.IsActive() {
		return "", false
	}
	if acct.IsSuperAdmin() {
		return catalog.RootPath, true
	}
	for _, g := range acct.Grants {
		if !g.Allows(catalog.ActionView) {
			continue
		}
		if res, ok := r.catalog.Lookup(g.Resource); ok {
			return res.Path, true
		}
	}
	return "", false
}

// Effective returns the actions the account holds per resource.
func (r *Resolver) Effective(acct accounts.Account) map[catalog.ResourceID][]catalog.Action {
	out := make(map[catalog.ResourceID][]catalog.Action)
	if !acct.IsActive() {
		return out
	}
	if acct.IsSuperAdmin() {
		for _, res := range r.catalog.Resources() {
			out[res.ID] = catalog.AllActions()
		}
		return out
	}
	for _, g := range acct.Grants {
		if _, ok := r.catalog.Lookup(g.Resource); ok && len(g.Actions) > 0 {
			out[g.Resource] = append([]catalog.Action(nil), g.Actions...)
		}
	}
	return out
}
