package notifications

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/projects/projectstest"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

func TestHandlers_Routes(t *testing.T) {
	svc, mock := newTestService(t)
	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)
	f := projectstest.NewFixture()
	userID := uuid.New()

	scoped := func(req *http.Request) *http.Request {
		ctx := contextkeys.WithAuth(req.Context(), projectstest.Principal(userID, rbac.RoleTeamMember))
		ctx = contextkeys.WithOrg(ctx, f.OrgContext(userID, orgs.OrgRoleMember))
		return req.WithContext(ctx)
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/notifications", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad unread_only", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("GET", "/notifications?unread_only=maybe", nil)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("bad notification id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("POST", "/notifications/nope/read", nil)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("read-all", func(t *testing.T) {
		mock.ExpectExec("UPDATE notifications n SET is_read = true").
			WithArgs(f.OrgID, userID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("POST", "/notifications/read-all", nil)))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
