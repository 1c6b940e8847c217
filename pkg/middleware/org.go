package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// OrgHeader optionally names the organization of a request
const OrgHeader = "X-Organization-ID"

// OrgResolver picks the effective organization for a user
type OrgResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, selector string) (*orgs.OrgContext, error)
}

// OrgContext resolves the caller's organization from the X-Organization-ID
// header or their single active membership. It must run after Auth.
func OrgContext(resolver OrgResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteAppError(w, r, apperrors.Authentication("authentication required"))
				return
			}

			oc, err := resolver.Resolve(r.Context(), principal.UserID, r.Header.Get(OrgHeader))
			if err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}

			ctx := contextkeys.WithOrg(r.Context(), oc)
			ctx = contextkeys.WithOrgID(ctx, oc.OrgID().String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
