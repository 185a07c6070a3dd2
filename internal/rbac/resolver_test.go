package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/shared"
)

type stubAccounts struct {
	byEmail map[string]accounts.Account
	err     error
}

func (s *stubAccounts) Resolve(ctx context.Context, id accounts.Identity) (accounts.Account, error) {
	if s.err != nil {
		return accounts.Account{}, s.err
	}
	email := accounts.NormalizeEmail(id.Email)
	acct, ok := s.byEmail[email]
	if !ok {
		return accounts.Account{Email: email, Role: accounts.RoleUser}, nil
	}
	return acct, nil
}

type decision struct {
	resource, action string
	allowed          bool
}

type recordingObserver struct {
	decisions []decision
}

func (o *recordingObserver) ObserveDecision(resource, action string, allowed bool) {
	o.decisions = append(o.decisions, decision{resource, action, allowed})
}

func grant(id catalog.ResourceID, actions ...catalog.Action) accounts.Grant {
	return accounts.Grant{Resource: id, Actions: actions}
}

func newResolver(cfg rbac.Config, accts ...accounts.Account) (*rbac.Resolver, *stubAccounts) {
	stub := &stubAccounts{byEmail: make(map[string]accounts.Account)}
	for _, a := range accts {
		stub.byEmail[a.Email] = a
	}
	return rbac.NewResolver(stub, catalog.Default(), cfg, nil), stub
}

func TestSuperAdminBypassesGrants(t *testing.T) {
	root := accounts.Account{Email: "root@isp.net", Role: accounts.RoleSuperAdmin, Grants: accounts.Grants{}}
	r, _ := newResolver(rbac.Config{}, root)
	ctx := context.Background()

	for _, res := range catalog.Default().Resources() {
		for _, action := range catalog.AllActions() {
			ok, err := r.Authorize(ctx, root.Email, res.Path, action)
			require.NoError(t, err)
			assert.True(t, ok, "%s %s", res.ID, action)
		}
	}
}

func TestUnapprovedAccountIsDeniedEverything(t *testing.T) {
	pending := accounts.Account{
		Email:  "pending@isp.net",
		Role:   accounts.RoleAdmin,
		Grants: accounts.FullGrants(catalog.Default()),
	}
	r, _ := newResolver(rbac.Config{UnknownResource: rbac.UnknownAllow}, pending)
	ctx := context.Background()

	for _, res := range catalog.Default().Resources() {
		for _, action := range catalog.AllActions() {
			ok, err := r.Authorize(ctx, pending.Email, res.Path, action)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	}
	ok, err := r.Authorize(ctx, pending.Email, "/not-in-catalog", catalog.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantedActionsOnly(t *testing.T) {
	user := accounts.Account{
		Email:    "tech@isp.net",
		Role:     accounts.RoleUser,
		Approved: true,
		Grants:   accounts.Grants{grant(catalog.Tickets, catalog.ActionView, catalog.ActionEdit)},
	}
	r, _ := newResolver(rbac.Config{}, user)
	ctx := context.Background()

	cases := []struct {
		path   string
		action catalog.Action
		want   bool
	}{
		{"/dashboard/tickets", catalog.ActionView, true},
		{"/dashboard/tickets/", catalog.ActionEdit, true},
		{"/dashboard/tickets", catalog.ActionDelete, false},
		{"/dashboard/tickets", catalog.ActionAdd, false},
		{"/dashboard/expenses", catalog.ActionView, false},
	}
	for _, tc := range cases {
		ok, err := r.Authorize(ctx, "TECH@isp.net", tc.path, tc.action)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "%s %s", tc.path, tc.action)
	}
}

func TestUnknownResourcePolicy(t *testing.T) {
	user := accounts.Account{Email: "tech@isp.net", Role: accounts.RoleUser, Approved: true}
	ctx := context.Background()

	allow, _ := newResolver(rbac.Config{}, user)
	ok, err := allow.Authorize(ctx, user.Email, "/reports", catalog.ActionView)
	require.NoError(t, err)
	assert.True(t, ok)

	deny, _ := newResolver(rbac.Config{UnknownResource: rbac.UnknownDeny}, user)
	ok, err = deny.Authorize(ctx, user.Email, "/reports", catalog.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeRejectsBadInput(t *testing.T) {
	r, _ := newResolver(rbac.Config{})
	ctx := context.Background()

	_, err := r.Authorize(ctx, "tech@isp.net", "/dashboard", "approve")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = r.Authorize(ctx, "   ", "/dashboard", catalog.ActionView)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestStoreFailureFailsClosed(t *testing.T) {
	r, stub := newResolver(rbac.Config{})
	stub.err = errors.New("connection refused")
	ctx := context.Background()

	ok, err := r.Authorize(ctx, "tech@isp.net", "/dashboard", catalog.ActionView)
	require.Error(t, err)
	assert.False(t, ok)

	_, redirect, err := r.RequireView(ctx, "tech@isp.net", "/dashboard")
	require.Error(t, err)
	assert.Nil(t, redirect)

	_, found, err := r.FirstPermittedPath(ctx, "tech@isp.net")
	require.Error(t, err)
	assert.False(t, found)
}

func TestRequireViewRedirects(t *testing.T) {
	approved := accounts.Account{
		Email:    "tech@isp.net",
		Role:     accounts.RoleUser,
		Approved: true,
		Grants:   accounts.Grants{grant(catalog.Stations, catalog.ActionView)},
	}
	pending := accounts.Account{Email: "new@isp.net", Role: accounts.RoleUser}
	ctx := context.Background()

	r, _ := newResolver(rbac.Config{}, approved, pending)

	_, redirect, err := r.RequireView(ctx, "", "/dashboard/stations")
	require.NoError(t, err)
	require.NotNil(t, redirect)
	assert.Equal(t, rbac.DefaultLoginPath, redirect.Location)
	assert.Equal(t, rbac.ReasonUnauthenticated, redirect.Reason)

	_, redirect, err = r.RequireView(ctx, pending.Email, "/dashboard/stations")
	require.NoError(t, err)
	require.NotNil(t, redirect)
	assert.Equal(t, rbac.DefaultPendingPath, redirect.Location)
	assert.Equal(t, rbac.ReasonUnapproved, redirect.Reason)

	_, redirect, err = r.RequireView(ctx, approved.Email, "/dashboard/tickets")
	require.NoError(t, err)
	require.NotNil(t, redirect)
	assert.Equal(t, rbac.DefaultPendingPath, redirect.Location)
	assert.Equal(t, rbac.ReasonForbidden, redirect.Reason)

	acct, redirect, err := r.RequireView(ctx, approved.Email, "/dashboard/stations")
	require.NoError(t, err)
	assert.Nil(t, redirect)
	assert.Equal(t, approved.Email, acct.Email)

	split, _ := newResolver(rbac.Config{ForbiddenPath: "/forbidden"}, approved)
	_, redirect, err = split.RequireView(ctx, approved.Email, "/dashboard/tickets")
	require.NoError(t, err)
	require.NotNil(t, redirect)
	assert.Equal(t, "/forbidden", redirect.Location)
}

func TestFirstPermitted(t *testing.T) {
	r, _ := newResolver(rbac.Config{})

	path, ok := r.FirstPermitted(accounts.Account{Role: accounts.RoleSuperAdmin})
	assert.True(t, ok)
	assert.Equal(t, catalog.RootPath, path)

	user := accounts.Account{
		Role:     accounts.RoleUser,
		Approved: true,
		Grants: accounts.Grants{
			grant(catalog.Expenses, catalog.ActionAdd),
			grant("billing", catalog.ActionView),
			grant(catalog.Equipment, catalog.ActionView),
			grant(catalog.Tickets, catalog.ActionView),
		},
	}
	path, ok = r.FirstPermitted(user)
	assert.True(t, ok)
	assert.Equal(t, "/dashboard/equipment", path)

	user.Approved = false
	_, ok = r.FirstPermitted(user)
	assert.False(t, ok)

	_, ok = r.FirstPermitted(accounts.Account{Role: accounts.RoleUser, Approved: true})
	assert.False(t, ok)
}

func TestEffective(t *testing.T) {
	r, _ := newResolver(rbac.Config{})
	cat := catalog.Default()

	all := r.Effective(accounts.Account{Role: accounts.RoleSuperAdmin})
	assert.Len(t, all, len(cat.Resources()))

	assert.Empty(t, r.Effective(accounts.Account{Role: accounts.RoleUser, Grants: accounts.FullGrants(cat)}))

	got := r.Effective(accounts.Account{
		Role:     accounts.RoleUser,
		Approved: true,
		Grants:   accounts.Grants{grant(catalog.Tickets, catalog.ActionView), grant(catalog.Users)},
	})
	assert.Equal(t, map[catalog.ResourceID][]catalog.Action{catalog.Tickets: {catalog.ActionView}}, got)
}

func TestDecisionsAreObserved(t *testing.T) {
	obs := &recordingObserver{}
	user := accounts.Account{Email: "tech@isp.net", Role: accounts.RoleUser, Approved: true}
	stub := &stubAccounts{byEmail: map[string]accounts.Account{user.Email: user}}
	r := rbac.NewResolver(stub, catalog.Default(), rbac.Config{}, obs)

	_, err := r.Authorize(context.Background(), user.Email, "/dashboard/tickets", catalog.ActionView)
	require.NoError(t, err)
	_, err = r.Authorize(context.Background(), user.Email, "/elsewhere", catalog.ActionView)
	require.NoError(t, err)

	assert.Equal(t, []decision{
		{"tickets", "view", false},
		{"unknown", "view", true},
	}, obs.decisions)
}

func TestBootstrapAccountThroughService(t *testing.T) {
	cat := catalog.Default()
	svc := accounts.NewService(accounts.NewMemoryStore(), cat, accounts.ServiceDeps{})
	r := rbac.NewResolver(svc, cat, rbac.Config{}, nil)
	ctx := context.Background()

	ok, err := r.Authorize(ctx, "Founder@ISP.net", "/dashboard/settings", catalog.ActionDelete)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Authorize(ctx, "second@isp.net", "/dashboard/settings", catalog.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	path, found, err := r.FirstPermittedPath(ctx, "founder@isp.net")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, catalog.RootPath, path)
}
