package tasks

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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
	base := "/projects/" + f.ProjectID.String() + "/tasks"

	scoped := func(req *http.Request) *http.Request {
		ctx := contextkeys.WithAuth(req.Context(), projectstest.Principal(f.ManagerID, rbac.RoleProjectManager))
		ctx = contextkeys.WithOrg(ctx, f.OrgContext(f.ManagerID, orgs.OrgRoleMember))
		return req.WithContext(ctx)
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", base, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad assignee filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("GET", base+"?assignee_id=bob", nil)))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("POST", base, strings.NewReader("{"))))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("progress out of range", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("PATCH", base+"/"+uuid.NewString()+"/progress", strings.NewReader(`{"progress": 150}`))
		router.ServeHTTP(w, scoped(req))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "progress must be between 0 and 100")
	})

	t.Run("task not found", func(t *testing.T) {
		taskID := uuid.New()
		f.ExpectProject(mock)
		mock.ExpectQuery("FROM tasks t").
			WithArgs(f.OrgID, f.ProjectID, taskID).
			WillReturnRows(mock.NewRows(taskCols))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("GET", base+"/"+taskID.String(), nil)))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
