package projects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/rbac"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Service manages projects
type Service struct {
	db     *sql.DB
	access *Access
}

// NewService creates the project service
func NewService(db *sql.DB, access *Access) *Service {
	return &Service{db: db, access: access}
}

// ListFilter narrows GET /projects
type ListFilter struct {
	Status   *Status
	Priority *Priority
	Search   string
	Page     pagination.Params
}

// CreateRequest is the body of POST /projects
type CreateRequest struct {
	ProjectName     string          `json:"project_name"`
	Description     *string         `json:"description"`
	Status          string          `json:"status"`
	Priority        string          `json:"priority"`
	ManagerID       uuid.UUID       `json:"manager_id"`
	StartDate       dates.Date      `json:"start_date"`
	EndDate         dates.Date      `json:"end_date"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	Location        *string         `json:"location"`
	ClientName      *string         `json:"client_name"`
	ContractType    *string         `json:"contract_type"`
	ParentProjectID *uuid.UUID      `json:"parent_project_id"`
}

// UpdateRequest is the body of PUT /projects/{id}; nil fields are unchanged
type UpdateRequest struct {
	ProjectName  *string          `json:"project_name"`
	Description  *string          `json:"description"`
	Status       *string          `json:"status"`
	Priority     *string          `json:"priority"`
	ManagerID    *uuid.UUID       `json:"manager_id"`
	StartDate    *dates.Date      `json:"start_date"`
	EndDate      *dates.Date      `json:"end_date"`
	TotalBudget  *decimal.Decimal `json:"total_budget"`
	Location     *string          `json:"location"`
	ClientName   *string          `json:"client_name"`
	ContractType *string          `json:"contract_type"`
}

func validateSchedule(start, end dates.Date, budget decimal.Decimal) error {
	if end.Before(start) {
		return apperrors.Validation("end_date must be on or after start_date")
	}
	if budget.IsNegative() {
		return apperrors.Validation("total_budget must be non-negative")
	}
	return nil
}

// List returns the projects visible to the caller
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, f ListFilter) (pagination.Result[*Project], error) {
	scope := tenancy.ForOrg("p", oc.OrgID())
	if !SeesAllProjects(principal, oc) {
		scope.And(`(p.manager_id = ? OR p.created_by = ? OR EXISTS (
			SELECT 1 FROM project_members pm
			WHERE pm.project_id = p.id AND pm.user_id = ? AND pm.can_view_project = true))`,
			principal.UserID, principal.UserID, principal.UserID)
	}
	if f.Status != nil {
		scope.And("p.status = ?", string(*f.Status))
	}
	if f.Priority != nil {
		scope.And("p.priority = ?", string(*f.Priority))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		scope.And("(p.project_name ILIKE ? OR p.description ILIKE ?)", pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects p `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return pagination.Result[*Project]{}, fmt.Errorf("failed to count projects: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` `+projectFrom+` `+where+`
		ORDER BY p.created_at DESC `+page, scope.Args()...)
	if err != nil {
		return pagination.Result[*Project]{}, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var items []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return pagination.Result[*Project]{}, fmt.Errorf("failed to scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*Project]{}, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Create creates a project. Requires projects:create or Org_Admin.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, req CreateRequest) (*Project, error) {
	if !oc.IsAdmin() && !principal.Can(rbac.PermProjectsCreate) {
		return nil, apperrors.Forbidden("you do not have permission to create projects")
	}

	req.ProjectName = strings.TrimSpace(req.ProjectName)
	if req.ProjectName == "" {
		return nil, apperrors.Validation("project_name is required")
	}
	if req.ManagerID == uuid.Nil {
		return nil, apperrors.Validation("manager_id is required")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, apperrors.Validation("start_date and end_date are required")
	}
	if err := validateSchedule(req.StartDate, req.EndDate, req.TotalBudget); err != nil {
		return nil, err
	}

	status := StatusPlanning
	if req.Status != "" {
		parsed, err := ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	priority := PriorityMedium
	if req.Priority != "" {
		parsed, err := ParsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = parsed
	}

	orgID := oc.OrgID()
	var id uuid.UUID
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := orgs.CheckProjectQuota(ctx, tx, orgID); err != nil {
			return err
		}
		if err := orgs.RequireActiveMember(ctx, tx, orgID, req.ManagerID, "manager_id"); err != nil {
			return err
		}
		if req.ParentProjectID != nil {
			if _, err := getProject(ctx, tx, orgID, *req.ParentProjectID); err != nil {
				if apperrors.IsKind(err, apperrors.KindNotFound) {
					return apperrors.BadRequest("parent project not found in this organization")
				}
				return err
			}
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO projects (organization_id, parent_project_id, project_name, description,
				status, priority, manager_id, start_date, end_date, total_budget,
				location, client_name, contract_type, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id`,
			orgID, req.ParentProjectID, req.ProjectName, req.Description,
			string(status), string(priority), req.ManagerID, req.StartDate, req.EndDate, req.TotalBudget,
			req.Location, req.ClientName, req.ContractType, principal.UserID).Scan(&id)
		if err != nil {
			return postgres.MapError(err, "create project")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.access.GetProject(ctx, orgID, id)
}

// Get returns a project. Callers who see every project of the organization
// in List may read any of them; everyone else needs can_view_project.
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) (*Project, error) {
	project, err := s.access.GetProject(ctx, oc.OrgID(), projectID)
	if err != nil {
		return nil, err
	}
	if SeesAllProjects(principal, oc) {
		return project, nil
	}
	if err := s.access.EnsurePermission(ctx, project, principal.UserID, CanViewProject,
		"you do not have permission to view this project"); err != nil {
		return nil, err
	}
	return project, nil
}

// canManage reports whether the caller administers the project: its manager,
// its creator or an Org_Admin
func canManage(project *Project, principal *auth.Principal, oc *orgs.OrgContext) bool {
	return project.IsOwner(principal.UserID) || oc.IsAdmin()
}

// Update changes project fields. Managers, creators and Org_Admins may
// always update; other callers need projects:edit and can_edit_tasks.
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req UpdateRequest) (*Project, error) {
	orgID := oc.OrgID()
	project, err := s.access.GetProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	if !canManage(project, principal, oc) {
		if !principal.Can(rbac.PermProjectsEdit) {
			return nil, apperrors.Forbidden("you do not have permission to edit this project")
		}
		if err := s.access.EnsurePermission(ctx, project, principal.UserID, CanEditTasks,
			"you do not have permission to edit this project"); err != nil {
			return nil, err
		}
	}

	if req.ProjectName != nil {
		name := strings.TrimSpace(*req.ProjectName)
		if name == "" {
			return nil, apperrors.Validation("project_name may not be empty")
		}
		project.ProjectName = name
	}
	if req.Description != nil {
		project.Description = req.Description
	}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		project.Status = st
	}
	if req.Priority != nil {
		pr, err := ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		project.Priority = pr
	}
	if req.StartDate != nil {
		project.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		project.EndDate = *req.EndDate
	}
	if req.TotalBudget != nil {
		project.TotalBudget = *req.TotalBudget
	}
	if req.Location != nil {
		project.Location = req.Location
	}
	if req.ClientName != nil {
		project.ClientName = req.ClientName
	}
	if req.ContractType != nil {
		project.ContractType = req.ContractType
	}
	if err := validateSchedule(project.StartDate, project.EndDate, project.TotalBudget); err != nil {
		return nil, err
	}
	if req.ManagerID != nil && *req.ManagerID != project.ManagerID {
		if err := orgs.RequireActiveMember(ctx, s.db, orgID, *req.ManagerID, "manager_id"); err != nil {
			return nil, err
		}
		project.ManagerID = *req.ManagerID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET project_name = $3, description = $4, status = $5, priority = $6, manager_id = $7,
		    start_date = $8, end_date = $9, total_budget = $10, location = $11,
		    client_name = $12, contract_type = $13, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false`,
		project.ID, orgID, project.ProjectName, project.Description, string(project.Status),
		string(project.Priority), project.ManagerID, project.StartDate, project.EndDate,
		project.TotalBudget, project.Location, project.ClientName, project.ContractType)
	if err != nil {
		return nil, postgres.MapError(err, "update project")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("project")
	}
	return s.access.GetProject(ctx, orgID, projectID)
}

// Delete soft-deletes a project. Allowed for Org_Admins, the creator and
// holders of projects:delete.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) error {
	orgID := oc.OrgID()
	project, err := s.access.GetProject(ctx, orgID, projectID)
	if err != nil {
		return err
	}
	if !oc.IsAdmin() && project.CreatedBy != principal.UserID && !principal.Can(rbac.PermProjectsDelete) {
		return apperrors.Forbidden("you do not have permission to delete this project")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false`, projectID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("project")
	}
	return nil
}
