package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

// Authenticator verifies a bearer access token
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, *auth.Claims, error)
}

// Auth requires a valid bearer access token and stores the principal and
// its claims in the request context
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				httputil.WriteAppError(w, r, apperrors.Authentication("missing or invalid authorization header"))
				return
			}

			principal, claims, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}

			ctx := contextkeys.WithAuth(r.Context(), principal)
			ctx = contextkeys.WithAccessToken(ctx, claims)
			ctx = contextkeys.WithUserID(ctx, principal.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects principals whose system role lacks perm. It must
// run after Auth.
func RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteAppError(w, r, apperrors.Authentication("authentication required"))
				return
			}
			if err := principal.Permissions.Require(perm); err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
