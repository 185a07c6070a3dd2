package accountshttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwave/portal/internal/accounts"
	accountshttp "github.com/linkwave/portal/internal/accounts/http"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/shared"
)

type countingNotifier struct {
	approved []string
}

func (n *countingNotifier) AccountApproved(ctx context.Context, acct accounts.Account) error {
	n.approved = append(n.approved, acct.Email)
	return nil
}

type fixture struct {
	router   chi.Router
	service  *accounts.Service
	notifier *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.Default()
	notifier := &countingNotifier{}
	svc := accounts.NewService(accounts.NewMemoryStore(), cat, accounts.ServiceDeps{Notifier: notifier})
	resolver := rbac.NewResolver(svc, cat, rbac.Config{}, nil)

	router := chi.NewRouter()
	accountshttp.NewHandler(nil, svc, resolver).MountRoutes(router, rbac.Middleware{Resolver: resolver})

	// First contact becomes the bootstrap superadmin.
	_, err := svc.Resolve(context.Background(), accounts.Identity{Email: "root@isp.net"})
	require.NoError(t, err)
	return &fixture{router: router, service: svc, notifier: notifier}
}

func (f *fixture) do(t *testing.T, method, target, email, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		sess := &shared.Session{ID: "test"}
		sess.SetUser(email)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestMeProvisionsPendingUser(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/api/me", "Tech@ISP.net", "")
	require.Equal(t, http.StatusOK, res.Code)
	var acct accounts.Account
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &acct))
	assert.Equal(t, "tech@isp.net", acct.Email)
	assert.Equal(t, accounts.RoleUser, acct.Role)
	assert.False(t, acct.Approved)

	res = f.do(t, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestPermissionsForSuperAdmin(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/api/me/permissions", "root@isp.net", "")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Approved    bool                `json:"approved"`
		Permissions map[string][]string `json:"permissions"`
		Landing     string              `json:"landing"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.True(t, body.Approved)
	assert.Len(t, body.Permissions, len(catalog.Default().Resources()))
	assert.Equal(t, catalog.RootPath, body.Landing)
}

func TestCreateAdminWithoutGrantsRejected(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/accounts", "root@isp.net",
		`{"email":"noc@isp.net","role":"admin","approved":true,"permissionGrants":[]}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	list, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateRejectsSuperAdminRole(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/accounts", "root@isp.net",
		`{"email":"noc@isp.net","role":"superadmin"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRoleInputIsParsed(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/accounts", "root@isp.net",
		`{"email":"noc@isp.net","role":" Admin ","permissionGrants":[{"resourceId":"stations","allowedActions":["view"]}]}`)
	require.Equal(t, http.StatusCreated, res.Code)
	var acct accounts.Account
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &acct))
	assert.Equal(t, accounts.RoleAdmin, acct.Role)

	res = f.do(t, http.MethodPost, "/api/accounts", "root@isp.net", `{"email":"x@isp.net","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPatch, "/api/accounts/noc@isp.net", "root@isp.net", `{"role":"USER"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"role":"user"`)

	res = f.do(t, http.MethodPatch, "/api/accounts/noc@isp.net", "root@isp.net", `{"role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCreateThenApprove(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/accounts", "root@isp.net",
		`{"email":"Field@ISP.net","role":"user","permissionGrants":[{"resourceId":"tickets","allowedActions":["view","edit"]}]}`)
	require.Equal(t, http.StatusCreated, res.Code)

	res = f.do(t, http.MethodPost, "/api/accounts", "root@isp.net", `{"email":"field@isp.net","role":"user"}`)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.do(t, http.MethodPatch, "/api/accounts/field@isp.net", "root@isp.net", `{"approved":true}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"field@isp.net"}, f.notifier.approved)

	res = f.do(t, http.MethodGet, "/api/me/permissions", "field@isp.net", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"tickets":["view","edit"]`)
	assert.Contains(t, res.Body.String(), `"landing":"/dashboard/tickets"`)
}

func TestUpdateUnknownAccount(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPatch, "/api/accounts/ghost@isp.net", "root@isp.net", `{"approved":true}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAccountsRequireUsersGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root, err := f.service.Resolve(ctx, accounts.Identity{Email: "root@isp.net"})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, root, accounts.CreateInput{
		Email:    "admin@isp.net",
		Role:     accounts.RoleAdmin,
		Approved: true,
		Grants: accounts.Grants{{
			Resource: catalog.Users,
			Actions:  []catalog.Action{catalog.ActionView, catalog.ActionEdit},
		}},
	})
	require.NoError(t, err)

	res := f.do(t, http.MethodGet, "/api/accounts", "pending@isp.net", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodGet, "/api/accounts", "admin@isp.net", "")
	assert.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodPost, "/api/accounts", "admin@isp.net", `{"email":"x@isp.net","role":"user"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodPost, "/api/accounts/pending@isp.net/promote", "admin@isp.net", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodPatch, "/api/accounts/root@isp.net", "admin@isp.net", `{"approved":false}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestPromote(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Resolve(context.Background(), accounts.Identity{Email: "tech@isp.net"})
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/accounts/tech@isp.net/promote", "root@isp.net", "")
	require.Equal(t, http.StatusOK, res.Code)
	var acct accounts.Account
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &acct))
	assert.Equal(t, accounts.RoleSuperAdmin, acct.Role)
	assert.True(t, acct.Approved)
	assert.Len(t, acct.Grants, len(catalog.Default().Resources()))
}
