package sections_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/sections"
	"github.com/linkwave/portal/internal/shared"
)

func newRouter(t *testing.T) (chi.Router, *accounts.Service) {
	t.Helper()
	cat := catalog.Default()
	svc := accounts.NewService(accounts.NewMemoryStore(), cat, accounts.ServiceDeps{})
	resolver := rbac.NewResolver(svc, cat, rbac.Config{}, nil)
	r := chi.NewRouter()
	sections.NewHandler(nil, resolver).MountRoutes(r, rbac.Middleware{Resolver: resolver})

	ctx := context.Background()
	root, err := svc.Resolve(ctx, accounts.Identity{Email: "root@isp.net"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, root, accounts.CreateInput{
		Email:    "tech@isp.net",
		Role:     accounts.RoleUser,
		Approved: true,
		Grants: accounts.Grants{{
			Resource: catalog.Stations,
			Actions:  []catalog.Action{catalog.ActionView, catalog.ActionEdit},
		}},
	})
	require.NoError(t, err)
	return r, svc
}

func get(r chi.Router, target, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if email != "" {
		sess := &shared.Session{ID: "test"}
		sess.SetUser(email)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestLandingRedirects(t *testing.T) {
	r, _ := newRouter(t)

	cases := []struct {
		email    string
		location string
	}{
		{"", rbac.DefaultLoginPath},
		{"root@isp.net", catalog.RootPath},
		{"tech@isp.net", "/dashboard/stations"},
		{"new@isp.net", rbac.DefaultPendingPath},
	}
	for _, tc := range cases {
		res := get(r, "/", tc.email)
		assert.Equal(t, http.StatusSeeOther, res.Code, tc.email)
		assert.Equal(t, tc.location, res.Header().Get("Location"), tc.email)
	}
}

func TestSectionListsAllowedActions(t *testing.T) {
	r, _ := newRouter(t)

	res := get(r, "/dashboard/stations/", "tech@isp.net")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Resource       catalog.Resource `json:"resource"`
		AllowedActions []catalog.Action `json:"allowedActions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, catalog.Stations, body.Resource.ID)
	assert.Equal(t, []catalog.Action{catalog.ActionView, catalog.ActionEdit}, body.AllowedActions)

	res = get(r, "/dashboard/tickets", "tech@isp.net")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.DefaultPendingPath, res.Header().Get("Location"))
}

func TestPendingPage(t *testing.T) {
	r, _ := newRouter(t)

	res := get(r, "/pending", "new@isp.net")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"approved":false`)

	res = get(r, "/pending", "")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.DefaultLoginPath, res.Header().Get("Location"))
}
