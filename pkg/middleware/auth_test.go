package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

type fakeAuthenticator struct {
	principal *auth.Principal
	err       error
	gotToken  string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*auth.Principal, *auth.Claims, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.principal, &auth.Claims{Type: auth.TokenTypeAccess}, nil
}

func testPrincipal(role rbac.Role) *auth.Principal {
	return &auth.Principal{
		UserID:      uuid.New(),
		Email:       "pm@example.com",
		Role:        role,
		Permissions: rbac.DefaultPermissions(role),
	}
}

func TestAuth(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		handler := Auth(&fakeAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/projects", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "AUTHENTICATION_ERROR")
	})

	t.Run("not a bearer token", func(t *testing.T) {
		handler := Auth(&fakeAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		req := httptest.NewRequest("GET", "/projects", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		fake := &fakeAuthenticator{err: apperrors.TokenExpired()}
		handler := Auth(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		req := httptest.NewRequest("GET", "/projects", nil)
		req.Header.Set("Authorization", "Bearer abc.def.ghi")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "abc.def.ghi", fake.gotToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("valid token", func(t *testing.T) {
		principal := testPrincipal(rbac.RoleTeamMember)
		handler := Auth(&fakeAuthenticator{principal: principal})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := auth.PrincipalFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, principal.UserID, got.UserID)
			_, ok = auth.ClaimsFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, principal.UserID.String(), contextkeys.GetUserID(r.Context()))
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest("GET", "/projects", nil)
		req.Header.Set("Authorization", "bearer token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequirePermission(rbac.PermUsersManage)(ok)

	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"lacks permission", testPrincipal(rbac.RoleSiteSupervisor), http.StatusForbidden},
		{"administrator", testPrincipal(rbac.RoleAdministrator), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/users", nil)
			if tt.principal != nil {
				req = req.WithContext(contextkeys.WithAuth(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type fakeResolver struct {
	oc       *orgs.OrgContext
	err      error
	selector string
}

func (f *fakeResolver) Resolve(_ context.Context, _ uuid.UUID, selector string) (*orgs.OrgContext, error) {
	f.selector = selector
	return f.oc, f.err
}

func TestOrgContext(t *testing.T) {
	orgID := uuid.New()
	principal := testPrincipal(rbac.RoleProjectManager)

	t.Run("resolves and stores organization", func(t *testing.T) {
		resolver := &fakeResolver{oc: &orgs.OrgContext{
			Organization: &orgs.Organization{ID: orgID, Name: "Acme", IsActive: true},
			Membership:   &orgs.Member{OrganizationID: orgID, UserID: principal.UserID, OrgRole: orgs.OrgRoleMember},
		}}
		handler := OrgContext(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			oc, ok := orgs.FromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, orgID, oc.OrgID())
			assert.Equal(t, orgID.String(), contextkeys.GetOrgID(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest("GET", "/projects", nil)
		req.Header.Set(OrgHeader, orgID.String())
		req = req.WithContext(contextkeys.WithAuth(req.Context(), principal))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, orgID.String(), resolver.selector)
	})

	t.Run("ambiguous membership", func(t *testing.T) {
		resolver := &fakeResolver{err: apperrors.BadRequest("multiple organizations; set X-Organization-ID")}
		handler := OrgContext(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		req := httptest.NewRequest("GET", "/projects", nil)
		req = req.WithContext(contextkeys.WithAuth(req.Context(), principal))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "X-Organization-ID")
	})

	t.Run("requires authentication", func(t *testing.T) {
		handler := OrgContext(&fakeResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/projects", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
