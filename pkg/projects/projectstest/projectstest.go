// Package projectstest provides sqlmock fixtures for the project access
// queries that every project-scoped service issues first.
package projectstest

import (
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

// ProjectColumns mirrors the project select list
var ProjectColumns = []string{
	"id", "organization_id", "parent_project_id", "project_name", "description",
	"status", "priority", "manager_id", "start_date", "end_date", "total_budget",
	"location", "client_name", "contract_type", "created_by", "created_at", "updated_at",
	"manager_name",
}

// MemberColumns mirrors the project member select list
var MemberColumns = []string{
	"id", "project_id", "user_id", "role_in_project", "joined_at",
	"can_view_project", "can_post_messages", "can_upload_documents", "can_edit_tasks",
	"can_manage_milestones", "can_manage_risks", "can_manage_expenses", "can_approve_expenses",
	"created_at", "updated_at",
}

// Fixture is a project with its owners
type Fixture struct {
	OrgID     uuid.UUID
	ProjectID uuid.UUID
	ManagerID uuid.UUID
	CreatorID uuid.UUID
}

// NewFixture creates a fixture with random ids
func NewFixture() Fixture {
	return Fixture{
		OrgID:     uuid.New(),
		ProjectID: uuid.New(),
		ManagerID: uuid.New(),
		CreatorID: uuid.New(),
	}
}

// ProjectRows returns the project as a result set
func (f Fixture) ProjectRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(ProjectColumns).AddRow(
		f.ProjectID, f.OrgID, nil, "Riverside Tower", nil,
		"In_Progress", "High", f.ManagerID, "2024-01-01", "2024-12-31", 1500000.0,
		"Kampala", nil, nil, f.CreatorID, now, now,
		"Pat Manager",
	)
}

// ExpectProject expects the tenant-scoped project lookup
func (f Fixture) ExpectProject(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM projects p LEFT JOIN users mu").
		WithArgs(f.OrgID, f.ProjectID).
		WillReturnRows(f.ProjectRows())
}

// ExpectProjectMissing expects the project lookup to find nothing
func (f Fixture) ExpectProjectMissing(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM projects p LEFT JOIN users mu").
		WithArgs(f.OrgID, f.ProjectID).
		WillReturnRows(sqlmock.NewRows(ProjectColumns))
}

// Flags selects the capability flags of a membership row; unset flags are
// false
type Flags struct {
	View, Post, Upload, EditTasks, Milestones, Risks, Expenses, Approve bool
}

// AllFlags grants every capability
var AllFlags = Flags{true, true, true, true, true, true, true, true}

// ViewOnly grants only can_view_project
var ViewOnly = Flags{View: true}

// ExpectMember expects the membership lookup for userID to return flags
func (f Fixture) ExpectMember(mock sqlmock.Sqlmock, userID uuid.UUID, flags Flags) {
	now := time.Now()
	mock.ExpectQuery("FROM project_members pm").
		WithArgs(f.ProjectID, userID).
		WillReturnRows(sqlmock.NewRows(MemberColumns).AddRow(
			uuid.New(), f.ProjectID, userID, nil, "2024-01-01",
			flags.View, flags.Post, flags.Upload, flags.EditTasks,
			flags.Milestones, flags.Risks, flags.Expenses, flags.Approve,
			now, now,
		))
}

// ExpectNoMember expects the membership lookup for userID to find nothing
func (f Fixture) ExpectNoMember(mock sqlmock.Sqlmock, userID uuid.UUID) {
	mock.ExpectQuery("FROM project_members pm").
		WithArgs(f.ProjectID, userID).
		WillReturnRows(sqlmock.NewRows(MemberColumns))
}

// OrgContext builds an organization context for the fixture's org
func (f Fixture) OrgContext(userID uuid.UUID, role orgs.OrgRole) *orgs.OrgContext {
	return &orgs.OrgContext{
		Organization: &orgs.Organization{ID: f.OrgID, Name: "Acme", Slug: "acme", IsActive: true},
		Membership: &orgs.Member{
			ID:             uuid.New(),
			OrganizationID: f.OrgID,
			UserID:         userID,
			OrgRole:        role,
			Status:         orgs.MembershipActive,
		},
	}
}

// Principal builds a principal with the default permissions of role
func Principal(userID uuid.UUID, role rbac.Role) *auth.Principal {
	return &auth.Principal{
		UserID:      userID,
		Email:       "user@example.com",
		FirstName:   "Test",
		LastName:    "User",
		Role:        role,
		Permissions: rbac.DefaultPermissions(role),
	}
}
