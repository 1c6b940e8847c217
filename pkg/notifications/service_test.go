package notifications

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/projects/projectstest"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

var notificationCols = []string{
	"id", "organization_id", "user_id", "project_id", "notification_type",
	"title", "body", "data", "is_read", "created_at", "updated_at",
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
	svc := NewService(db, projects.NewAccess(db, nil), NewNotifier(nil))
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	return svc, mock
}

func expectAccessible(mock sqlmock.Sqlmock, orgID, userID uuid.UUID, ids ...uuid.UUID) {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery("SELECT p.id FROM projects p").
		WithArgs(orgID, userID, userID, userID).
		WillReturnRows(rows)
}

func TestDueLabel(t *testing.T) {
	assert.Equal(t, "today", dueLabel(0))
	assert.Equal(t, "in 1 day", dueLabel(1))
	assert.Equal(t, "in 6 days", dueLabel(6))
}

func TestService_ListRejectsInaccessibleProject(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	userID := uuid.New()
	other := uuid.New()

	expectAccessible(mock, f.OrgID, userID, f.ProjectID)

	_, err := svc.List(context.Background(),
		projectstest.Principal(userID, rbac.RoleTeamMember),
		f.OrgContext(userID, orgs.OrgRoleMember),
		ListFilter{ProjectID: &other, Page: pagination.New(1, 20)})

	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "you do not have access to this project")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ListGeneratesDueSoon(t *testing.T) {
	svc, mock := newTestService(t)
	mock.MatchExpectationsInOrder(false)
	f := projectstest.NewFixture()
	userID := uuid.New()
	fresh, reminded := uuid.New(), uuid.New()
	now := time.Now()

	expectAccessible(mock, f.OrgID, userID, f.ProjectID)
	mock.ExpectQuery("FROM milestones").
		WithArgs(f.OrgID, sqlmock.AnyArg(), "2026-03-10", "2026-03-17").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "name", "target_date"}).
			AddRow(fresh, f.ProjectID, "Level 3 slab", "2026-03-12").
			AddRow(reminded, f.ProjectID, "Roof", "2026-03-15"))
	mock.ExpectQuery("data->>'milestone_id'").
		WithArgs(f.OrgID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"milestone_id"}).AddRow(reminded.String()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications .* ON CONFLICT DO NOTHING").
		WithArgs(f.OrgID, userID, f.ProjectID, "milestone_due_soon", "Milestone due soon",
			"Level 3 slab is due in 2 days.", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notifications n .* n.project_id = \\$3").
		WithArgs(f.OrgID, userID, f.ProjectID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notifications n .* n.is_read = false").
		WithArgs(f.OrgID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("ORDER BY n.created_at DESC LIMIT \\$4 OFFSET \\$5").
		WithArgs(f.OrgID, userID, f.ProjectID, 20, 0).
		WillReturnRows(sqlmock.NewRows(notificationCols).
			AddRow(uuid.New(), f.OrgID, userID, f.ProjectID, "milestone_due_soon",
				"Milestone due soon", "Level 3 slab is due in 2 days.",
				[]byte(`{"milestone_id":"`+fresh.String()+`","target_date":"2026-03-12"}`), false, now, now))

	resp, err := svc.List(context.Background(),
		projectstest.Principal(userID, rbac.RoleTeamMember),
		f.OrgContext(userID, orgs.OrgRoleMember),
		ListFilter{ProjectID: &f.ProjectID, Page: pagination.New(1, 20)})

	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.UnreadCount)
	assert.Equal(t, 1, resp.TotalPages)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, fresh.String(), resp.Items[0].Data["milestone_id"])
	assert.Equal(t, TypeMilestoneDueSoon, resp.Items[0].NotificationType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GenerateDueSoonNoProjects(t *testing.T) {
	svc, mock := newTestService(t)

	n, err := svc.GenerateDueSoon(context.Background(), uuid.New(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GenerateDueSoonSkipsConcurrentDuplicates(t *testing.T) {
	svc, mock := newTestService(t)
	mock.MatchExpectationsInOrder(false)
	f := projectstest.NewFixture()
	userID := uuid.New()
	slab, roof := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM milestones").
		WithArgs(f.OrgID, sqlmock.AnyArg(), "2026-03-10", "2026-03-17").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "name", "target_date"}).
			AddRow(slab, f.ProjectID, "Level 3 slab", "2026-03-10").
			AddRow(roof, f.ProjectID, "Roof", "2026-03-11"))
	mock.ExpectQuery("data->>'milestone_id'").
		WithArgs(f.OrgID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"milestone_id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications .* ON CONFLICT DO NOTHING").
		WithArgs(f.OrgID, userID, f.ProjectID, "milestone_due_soon", "Milestone due soon",
			"Level 3 slab is due today.", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO notifications .* ON CONFLICT DO NOTHING").
		WithArgs(f.OrgID, userID, f.ProjectID, "milestone_due_soon", "Milestone due soon",
			"Roof is due in 1 day.", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := svc.GenerateDueSoon(context.Background(), f.OrgID, userID, []uuid.UUID{f.ProjectID})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_MarkRead(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	userID := uuid.New()
	id := uuid.New()
	now := time.Now()
	principal := projectstest.Principal(userID, rbac.RoleTeamMember)
	oc := f.OrgContext(userID, orgs.OrgRoleMember)

	mock.ExpectQuery("UPDATE notifications n SET is_read = true").
		WithArgs(f.OrgID, userID, id).
		WillReturnRows(sqlmock.NewRows(notificationCols).
			AddRow(id, f.OrgID, userID, nil, "task_assigned", "Task assigned", "body", nil, true, now, now))

	n, err := svc.MarkRead(context.Background(), principal, oc, id)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.Nil(t, n.ProjectID)
	assert.Empty(t, n.Data)

	mock.ExpectQuery("UPDATE notifications n SET is_read = true").
		WithArgs(f.OrgID, userID, id).
		WillReturnRows(sqlmock.NewRows(notificationCols))

	_, err = svc.MarkRead(context.Background(), principal, oc, id)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "notification not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_MarkAllRead(t *testing.T) {
	svc, mock := newTestService(t)
	f := projectstest.NewFixture()
	userID := uuid.New()

	mock.ExpectExec("UPDATE notifications n SET is_read = true .* n.is_read = false AND n.project_id = \\$3").
		WithArgs(f.OrgID, userID, f.ProjectID).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := svc.MarkAllRead(context.Background(),
		projectstest.Principal(userID, rbac.RoleTeamMember),
		f.OrgContext(userID, orgs.OrgRoleMember), &f.ProjectID)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
