package risks

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/projects/projectstest"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

var riskCols = []string{
	"id", "organization_id", "project_id", "description", "category", "probability", "impact",
	"risk_score", "status", "mitigation_plan", "owner_id", "owner_name",
	"identified_date", "review_date", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	db, mock := setupMockDB(t)
	return NewService(db, projects.NewAccess(db, nil)), mock
}

func riskRows(f projectstest.Fixture, id uuid.UUID, probability, impact Level) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(riskCols).AddRow(
		id, f.OrgID, f.ProjectID, "Steel delivery delay", "Supply Chain",
		string(probability), string(impact), Score(probability, impact), "Identified", nil,
		nil, nil, "2024-02-01", nil, now, now,
	)
}

func TestScore(t *testing.T) {
	tests := []struct {
		probability, impact Level
		want int
	}{
		{LevelVeryLow, LevelVeryLow, 1},
		{LevelLow, LevelMedium, 6},
		{LevelHigh, LevelHigh, 16},
		{LevelVeryHigh, LevelMedium, 15},
		{LevelVeryHigh, LevelVeryHigh, 25},
	}
	for _, tt := range tests {
		t.Run(string(tt.probability)+"x"+string(tt.impact), func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.probability, tt.impact))
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("impact", "very high")
	require.NoError(t, err)
	assert.Equal(t, LevelVeryHigh, l)

	_, err = ParseLevel("impact", "Extreme")
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "invalid impact")
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Open")
	require.NoError(t, err)
	assert.Equal(t, StatusIdentified, st)

	st, err = ParseStatus("mitigated")
	require.NoError(t, err)
	assert.Equal(t, StatusMitigated, st)

	_, err = ParseStatus("Resolved")
	assert.Error(t, err)
}

func TestUpdateRequest_DescriptionNull(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"description": null, "impact": "High"}`), &req))
	assert.True(t, req.descriptionNull)
	assert.Equal(t, "High", *req.Impact)

	req = UpdateRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"impact": "Low"}`), &req))
	assert.False(t, req.descriptionNull)
}

func TestService_CreateScoresRisk(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	manager := uuid.New()
	id := uuid.New()

	f.ExpectProject(mock)
	f.ExpectMember(mock, manager, projectstest.Flags{View: true, Risks: true})
	mock.ExpectQuery("INSERT INTO risks").
		WithArgs(f.OrgID, f.ProjectID, "Steel delivery delay", nil, "High", "Very_High",
			20, "Identified", nil, nil, sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery("FROM risks r LEFT JOIN users ou").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(riskRows(f, id, LevelHigh, LevelVeryHigh))

	risk, err := svc.Create(context.Background(),
		projectstest.Principal(manager, rbac.RoleSiteSupervisor),
		f.OrgContext(manager, orgs.OrgRoleMember),
		f.ProjectID, CreateRequest{Description: "Steel delivery delay", Probability: "high", Impact: "Very_High", Status: "Open"})

	require.NoError(t, err)
	assert.Equal(t, 20, risk.RiskScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateRequiresCapability(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	viewer := uuid.New()

	f.ExpectProject(mock)
	f.ExpectMember(mock, viewer, projectstest.ViewOnly)

	_, err := svc.Create(context.Background(),
		projectstest.Principal(viewer, rbac.RoleStakeholder),
		f.OrgContext(viewer, orgs.OrgRoleMember),
		f.ProjectID, CreateRequest{Description: "x", Probability: "Low", Impact: "Low"})

	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateRecomputesScore(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	id := uuid.New()
	impact := "Very_Low"

	f.ExpectProject(mock)
	mock.ExpectQuery("FROM risks r").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(riskRows(f, id, LevelHigh, LevelHigh))
	mock.ExpectExec("UPDATE risks").
		WithArgs(id, f.OrgID, f.ProjectID, "Steel delivery delay", "Supply Chain", "High", "Very_Low",
			4, "Identified", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM risks r").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(riskRows(f, id, LevelHigh, LevelVeryLow))

	risk, err := svc.Update(context.Background(),
		projectstest.Principal(f.ManagerID, rbac.RoleProjectManager),
		f.OrgContext(f.ManagerID, orgs.OrgRoleMember),
		f.ProjectID, id, UpdateRequest{Impact: &impact})

	require.NoError(t, err)
	assert.Equal(t, 4, risk.RiskScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateRejectsNullDescription(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()

	f.ExpectProject(mock)

	_, err := svc.Update(context.Background(),
		projectstest.Principal(f.ManagerID, rbac.RoleProjectManager),
		f.OrgContext(f.ManagerID, orgs.OrgRoleMember),
		f.ProjectID, uuid.New(), UpdateRequest{descriptionNull: true})

	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "description cannot be null")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ListOrdersByScore(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()

	f.ExpectProject(mock)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM risks r").
		WithArgs(f.OrgID, f.ProjectID, "Safety").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY r.risk_score DESC").
		WithArgs(f.OrgID, f.ProjectID, "Safety", 20, 0).
		WillReturnRows(sqlmock.NewRows(riskCols))

	result, err := svc.List(context.Background(),
		projectstest.Principal(f.ManagerID, rbac.RoleProjectManager),
		f.OrgContext(f.ManagerID, orgs.OrgRoleMember),
		f.ProjectID, ListFilter{Category: "Safety", Page: pagination.New(1, 20)})

	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Zero(t, result.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_UpdateNullDescription(t *testing.T) {
	svc, mock := newTestService(t)
	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)
	f := projectstest.NewFixture()

	f.ExpectProject(mock)
	req := httptest.NewRequest("PUT", "/projects/"+f.ProjectID.String()+"/risks/"+uuid.NewString(),
		strings.NewReader(`{"description": null}`))
	ctx := contextkeys.WithAuth(req.Context(), projectstest.Principal(f.ManagerID, rbac.RoleProjectManager))
	ctx = contextkeys.WithOrg(ctx, f.OrgContext(f.ManagerID, orgs.OrgRoleMember))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "description cannot be null")
	assert.NoError(t, mock.ExpectationsWereMet())
}
