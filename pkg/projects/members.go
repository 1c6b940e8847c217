package projects

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// Capabilities is the set of flags carried by a membership request. Nil
// flags take the column defaults on insert and are unchanged on update.
type Capabilities struct {
	CanViewProject      *bool `json:"can_view_project"`
	CanPostMessages     *bool `json:"can_post_messages"`
	CanUploadDocuments  *bool `json:"can_upload_documents"`
	CanEditTasks        *bool `json:"can_edit_tasks"`
	CanManageMilestones *bool `json:"can_manage_milestones"`
	CanManageRisks      *bool `json:"can_manage_risks"`
	CanManageExpenses   *bool `json:"can_manage_expenses"`
	CanApproveExpenses  *bool `json:"can_approve_expenses"`
}

func (c Capabilities) apply(m *Member) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&m.CanViewProject, c.CanViewProject)
	set(&m.CanPostMessages, c.CanPostMessages)
	set(&m.CanUploadDocuments, c.CanUploadDocuments)
	set(&m.CanEditTasks, c.CanEditTasks)
	set(&m.CanManageMilestones, c.CanManageMilestones)
	set(&m.CanManageRisks, c.CanManageRisks)
	set(&m.CanManageExpenses, c.CanManageExpenses)
	set(&m.CanApproveExpenses, c.CanApproveExpenses)
}

// AddMemberRequest is the body of POST /projects/{id}/members
type AddMemberRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	RoleInProject *string   `json:"role_in_project"`
	Capabilities
}

// UpdateMemberRequest is the body of PUT /projects/{id}/members/{user_id}
type UpdateMemberRequest struct {
	RoleInProject *string `json:"role_in_project"`
	Capabilities
}

const memberDetailColumns = memberColumns + `,
	TRIM(CONCAT(u.first_name, ' ', u.last_name)) AS user_name, u.email`

func (s *Service) requireManager(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) (*Project, error) {
	project, err := s.access.GetProject(ctx, oc.OrgID(), projectID)
	if err != nil {
		return nil, err
	}
	if !canManage(project, principal, oc) {
		return nil, apperrors.Forbidden("only the project manager, creator or an org admin can manage project members")
	}
	return project, nil
}

// ListMembers returns a project's members to anyone who may Get the project
func (s *Service) ListMembers(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) ([]*Member, error) {
	project, err := s.Get(ctx, principal, oc, projectID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+memberDetailColumns+`
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1 AND u.is_deleted = false
		ORDER BY pm.joined_at, pm.created_at`, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		var name, email string
		m, err := scanMember(rows, &name, &email)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		m.UserName, m.UserEmail = name, email
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project members: %w", err)
	}
	return members, nil
}

// AddMember adds an Active organization member to the project
func (s *Service) AddMember(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req AddMemberRequest) (*Member, error) {
	if req.UserID == uuid.Nil {
		return nil, apperrors.Validation("user_id is required")
	}
	project, err := s.requireManager(ctx, principal, oc, projectID)
	if err != nil {
		return nil, err
	}
	if err := orgs.RequireActiveMember(ctx, s.db, oc.OrgID(), req.UserID, "user_id"); err != nil {
		return nil, err
	}

	existing, err := s.access.GetMember(ctx, project.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("user is already a member of this project")
	}

	m := &Member{
		CanViewProject:      true,
		CanPostMessages:     true,
		CanUploadDocuments:  true,
		CanEditTasks:        true,
		CanManageMilestones: true,
		CanManageRisks:      true,
		CanManageExpenses:   true,
		CanApproveExpenses:  true,
	}
	req.Capabilities.apply(m)

	created, err := scanMember(s.db.QueryRowContext(ctx, `
		INSERT INTO project_members AS pm (project_id, user_id, role_in_project,
			can_view_project, can_post_messages, can_upload_documents, can_edit_tasks,
			can_manage_milestones, can_manage_risks, can_manage_expenses, can_approve_expenses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+memberColumns,
		project.ID, req.UserID, req.RoleInProject,
		m.CanViewProject, m.CanPostMessages, m.CanUploadDocuments, m.CanEditTasks,
		m.CanManageMilestones, m.CanManageRisks, m.CanManageExpenses, m.CanApproveExpenses))
	if err != nil {
		mapped := postgres.MapError(err, "add project member")
		if apperrors.IsKind(mapped, apperrors.KindConflict) {
			return nil, apperrors.Conflict("user is already a member of this project")
		}
		return nil, mapped
	}
	return created, nil
}

// UpdateMember changes a member's role or capability flags
func (s *Service) UpdateMember(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, userID uuid.UUID, req UpdateMemberRequest) (*Member, error) {
	project, err := s.requireManager(ctx, principal, oc, projectID)
	if err != nil {
		return nil, err
	}
	m, err := s.access.GetMember(ctx, project.ID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.NotFound("project member")
	}

	if req.RoleInProject != nil {
		m.RoleInProject = req.RoleInProject
	}
	req.Capabilities.apply(m)

	updated, err := scanMember(s.db.QueryRowContext(ctx, `
		UPDATE project_members AS pm
		SET role_in_project = $3, can_view_project = $4, can_post_messages = $5,
		    can_upload_documents = $6, can_edit_tasks = $7, can_manage_milestones = $8,
		    can_manage_risks = $9, can_manage_expenses = $10, can_approve_expenses = $11,
		    updated_at = now()
		WHERE pm.project_id = $1 AND pm.user_id = $2
		RETURNING `+memberColumns,
		project.ID, userID, m.RoleInProject,
		m.CanViewProject, m.CanPostMessages, m.CanUploadDocuments, m.CanEditTasks,
		m.CanManageMilestones, m.CanManageRisks, m.CanManageExpenses, m.CanApproveExpenses))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "project member", "update project member")
	}
	return updated, nil
}

// RemoveMember deletes a project membership
func (s *Service) RemoveMember(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, userID uuid.UUID) error {
	project, err := s.requireManager(ctx, principal, oc, projectID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, project.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("project member")
	}
	return nil
}
