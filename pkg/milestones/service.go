package milestones

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

const (
	denyView   = "you do not have permission to view milestones in this project"
	denyManage = "you do not have permission to manage milestones in this project"
)

// Service manages milestones
type Service struct {
	db     *sql.DB
	access *projects.Access
}

// NewService creates the milestone service
func NewService(db *sql.DB, access *projects.Access) *Service {
	return &Service{db: db, access: access}
}

const milestoneColumns = `m.id, m.organization_id, m.project_id, m.name, m.description,
	m.target_date, m.actual_date, m.status, m.completion_percentage, m.dependencies,
	m.created_at, m.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMilestone(row rowScanner) (*Milestone, error) {
	var (
		m    Milestone
		deps pq.StringArray
	)
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ProjectID, &m.Name, &m.Description,
		&m.TargetDate, &m.ActualDate, &m.Status, &m.CompletionPercentage, &deps,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Dependencies = make([]uuid.UUID, 0, len(deps))
	for _, d := range deps {
		id, err := uuid.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("invalid milestone dependency %q: %w", d, err)
		}
		m.Dependencies = append(m.Dependencies, id)
	}
	return &m, nil
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

func (s *Service) getMilestone(ctx context.Context, orgID, projectID, milestoneID uuid.UUID) (*Milestone, error) {
	scope := tenancy.ForProject("m", orgID, projectID).And("m.id = ?", milestoneID)
	m, err := scanMilestone(s.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones m `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "milestone", "get milestone")
	}
	return m, nil
}

// List returns a page of a project's milestones, earliest target first
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, f ListFilter) (pagination.Result[*Milestone], error) {
	var empty pagination.Result[*Milestone]
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return empty, err
	}

	scope := tenancy.ForProject("m", orgID, projectID)
	if f.Status != nil {
		scope.And("m.status = ?", string(*f.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM milestones m `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count milestones: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM milestones m `+where+`
		ORDER BY m.target_date ASC, m.created_at ASC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var items []*Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan milestone: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate milestones: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Get returns one milestone
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, milestoneID uuid.UUID) (*Milestone, error) {
	if _, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	return s.getMilestone(ctx, oc.OrgID(), projectID, milestoneID)
}

// Create adds a milestone, Pending unless a status is given
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req CreateRequest) (*Milestone, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageMilestones, denyManage); err != nil {
		return nil, err
	}

	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.TargetDate == nil {
		return nil, apperrors.Validation("target_date is required")
	}
	status := StatusPending
	if req.Status != "" {
		if status, err = ParseMilestoneStatus(req.Status); err != nil {
			return nil, err
		}
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO milestones (organization_id, project_id, name, description, target_date, status, dependencies)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		orgID, projectID, name, req.Description, *req.TargetDate, string(status),
		uuidArray(req.Dependencies)).Scan(&id)
	if err != nil {
		return nil, postgres.MapError(err, "create milestone")
	}
	return s.getMilestone(ctx, orgID, projectID, id)
}

// Update changes milestone fields
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, milestoneID uuid.UUID, req UpdateRequest) (*Milestone, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageMilestones, denyManage); err != nil {
		return nil, err
	}
	m, err := s.getMilestone(ctx, orgID, projectID, milestoneID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if m.Name, err = validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		m.Description = req.Description
	}
	if req.TargetDate != nil {
		m.TargetDate = *req.TargetDate
	}
	if req.ActualDate != nil {
		m.ActualDate = req.ActualDate
	}
	if req.Status != nil {
		if m.Status, err = ParseMilestoneStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.CompletionPercentage != nil {
		p := *req.CompletionPercentage
		if p < 0 || p > 100 {
			return nil, apperrors.Validation("completion_percentage must be between 0 and 100")
		}
		m.CompletionPercentage = p
	}
	if req.Dependencies != nil {
		m.Dependencies = *req.Dependencies
	}
	if m.Status == StatusCompleted && m.ActualDate == nil {
		today := dates.Today()
		m.ActualDate = &today
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE milestones
		SET name = $4, description = $5, target_date = $6, actual_date = $7, status = $8,
		    completion_percentage = $9, dependencies = $10, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		milestoneID, orgID, projectID, m.Name, m.Description, m.TargetDate, m.ActualDate,
		string(m.Status), m.CompletionPercentage, uuidArray(m.Dependencies))
	if err != nil {
		return nil, postgres.MapError(err, "update milestone")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("milestone")
	}
	return s.getMilestone(ctx, orgID, projectID, milestoneID)
}

// Delete soft-deletes a milestone
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, milestoneID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageMilestones, denyManage); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE milestones SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		milestoneID, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("milestone")
	}
	return nil
}
