package projects

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/rbac"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Access resolves projects inside an organization and evaluates project
// capabilities
type Access struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewAccess creates a project access resolver
func NewAccess(db *sql.DB, metrics *observability.Metrics) *Access {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Access{db: db, metrics: metrics}
}

const projectColumns = `p.id, p.organization_id, p.parent_project_id, p.project_name, p.description,
	p.status, p.priority, p.manager_id, p.start_date, p.end_date, p.total_budget,
	p.location, p.client_name, p.contract_type, p.created_by, p.created_at, p.updated_at,
	NULLIF(TRIM(CONCAT(mu.first_name, ' ', mu.last_name)), '') AS manager_name`

const projectFrom = `FROM projects p LEFT JOIN users mu ON mu.id = p.manager_id`

const memberColumns = `pm.id, pm.project_id, pm.user_id, pm.role_in_project, pm.joined_at,
	pm.can_view_project, pm.can_post_messages, pm.can_upload_documents, pm.can_edit_tasks,
	pm.can_manage_milestones, pm.can_manage_risks, pm.can_manage_expenses, pm.can_approve_expenses,
	pm.created_at, pm.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p           Project
		parentID    uuid.NullUUID
		description sql.NullString
		location    sql.NullString
		client      sql.NullString
		contract    sql.NullString
		managerName sql.NullString
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &parentID, &p.ProjectName, &description,
		&p.Status, &p.Priority, &p.ManagerID, &p.StartDate, &p.EndDate, &p.TotalBudget,
		&location, &client, &contract, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &managerName)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.UUID
		p.ParentProjectID = &id
	}
	p.Description = nullString(description)
	p.Location = nullString(location)
	p.ClientName = nullString(client)
	p.ContractType = nullString(contract)
	p.ManagerName = nullString(managerName)
	return &p, nil
}

func scanMember(row rowScanner, extra ...interface{}) (*Member, error) {
	var (
		m    Member
		role sql.NullString
	)
	dest := []interface{}{&m.ID, &m.ProjectID, &m.UserID, &role, &m.JoinedAt,
		&m.CanViewProject, &m.CanPostMessages, &m.CanUploadDocuments, &m.CanEditTasks,
		&m.CanManageMilestones, &m.CanManageRisks, &m.CanManageExpenses, &m.CanApproveExpenses,
		&m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	m.RoleInProject = nullString(role)
	return &m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetProject returns a live project of orgID. A project of another
// organization is indistinguishable from a missing one.
func (a *Access) GetProject(ctx context.Context, orgID, projectID uuid.UUID) (*Project, error) {
	return getProject(ctx, a.db, orgID, projectID)
}

func getProject(ctx context.Context, q postgres.Querier, orgID, projectID uuid.UUID) (*Project, error) {
	s := tenancy.ForOrg("p", orgID).And("p.id = ?", projectID)
	project, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` `+projectFrom+` `+s.Where(), s.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "project", "get project")
	}
	return project, nil
}

// GetMember returns the (project, user) membership or nil when absent
func (a *Access) GetMember(ctx context.Context, projectID, userID uuid.UUID) (*Member, error) {
	return getMember(ctx, a.db, projectID, userID)
}

func getMember(ctx context.Context, q postgres.Querier, projectID, userID uuid.UUID) (*Member, error) {
	m, err := scanMember(q.QueryRowContext(ctx, `SELECT `+memberColumns+`
		FROM project_members pm
		WHERE pm.project_id = $1 AND pm.user_id = $2`, projectID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project member: %w", err)
	}
	return m, nil
}

// EnsurePermission passes when userID is the project's manager or creator,
// or holds capability through a project membership. Otherwise it returns
// Forbidden("not a project member") or Forbidden(denyMessage).
func (a *Access) EnsurePermission(ctx context.Context, project *Project, userID uuid.UUID, capability Capability, denyMessage string) error {
	if project.IsOwner(userID) {
		return nil
	}

	member, err := getMember(ctx, a.db, project.ID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		a.metrics.PermissionDenialsTotal.WithLabelValues(capability.String()).Inc()
		return apperrors.Forbidden("not a project member")
	}
	if !capability.Granted(member) {
		a.metrics.PermissionDenialsTotal.WithLabelValues(capability.String()).Inc()
		return apperrors.Forbidden(denyMessage)
	}
	return nil
}

// Authorize loads a project of orgID and checks capability for userID in
// one step
func (a *Access) Authorize(ctx context.Context, orgID, projectID, userID uuid.UUID, capability Capability, denyMessage string) (*Project, error) {
	project, err := a.GetProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	if err := a.EnsurePermission(ctx, project, userID, capability, denyMessage); err != nil {
		return nil, err
	}
	return project, nil
}

// Can reports whether EnsurePermission would pass
func (a *Access) Can(ctx context.Context, project *Project, userID uuid.UUID, capability Capability) (bool, error) {
	err := a.EnsurePermission(ctx, project, userID, capability, "")
	if err == nil {
		return true, nil
	}
	if apperrors.IsKind(err, apperrors.KindForbidden) {
		return false, nil
	}
	return false, err
}

// AccessibleProjectIDs lists the live projects of orgID userID can view:
// as manager, creator or a member with can_view_project. With includeAll
// every project of the organization is returned.
func (a *Access) AccessibleProjectIDs(ctx context.Context, orgID, userID uuid.UUID, includeAll bool) ([]uuid.UUID, error) {
	s := tenancy.ForOrg("p", orgID)
	if !includeAll {
		s.And(`(p.manager_id = ? OR p.created_by = ? OR EXISTS (
			SELECT 1 FROM project_members pm
			WHERE pm.project_id = p.id AND pm.user_id = ? AND pm.can_view_project = true))`,
			userID, userID, userID)
	}

	rows, err := a.db.QueryContext(ctx, `SELECT p.id FROM projects p `+s.Where()+` ORDER BY p.created_at`, s.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible projects: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return ids, nil
}

// SeesAllProjects reports whether the caller sees every project of the
// organization: Org_Admins and holders of projects:view:all
func SeesAllProjects(principal *auth.Principal, oc *orgs.OrgContext) bool {
	return oc.IsAdmin() || principal.Can(rbac.PermProjectsViewAll)
}
